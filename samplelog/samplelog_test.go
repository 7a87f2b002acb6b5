package samplelog

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 1, 21, 0, 0, 0, time.Local)

func TestRecordCSV(t *testing.T) {
	for _, tc := range []struct {
		rec  Record
		line string
	}{
		{Record{t0, 0.423, true, 0.95}, "2025-01-01T21:00:00,0.423,1,0.950"},
		{Record{t0.Add(time.Minute + 500*time.Millisecond), 0, false, 1}, "2025-01-01T21:01:00,0.000,0,1.000"},
		{Record{t0, 1, false, 0.6513215599}, "2025-01-01T21:00:00,1.000,0,0.651"},
	} {
		if line := tc.rec.String(); line != tc.line {
			t.Errorf("format %v: expected %q, got %q", tc.rec, tc.line, line)
		}
	}
}

func TestParseRecord(t *testing.T) {
	r, err := ParseRecord("2025-01-01T21:00:00,0.423,1,0.950\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp := (Record{t0, 0.423, true, 0.95}); !r.Time.Equal(exp.Time) || r.BlueAvg != exp.BlueAvg || r.Active != exp.Active || r.FilterLevel != exp.FilterLevel {
		t.Errorf("expected %v, got %v", exp, r)
	}
	for _, line := range []string{
		"",
		Header,
		"2025-01-01T21:00:00,0.423,1",
		"2025-01-01 21:00:00,0.423,1,0.950",
		"2025-01-01T21:00:00,x,1,0.950",
		"2025-01-01T21:00:00,0.423,yes,0.950",
		"2025-01-01T21:00:00,1.5,1,0.950",
		"2025-01-01T21:00:00,0.423,1,-0.1",
		"2025-01-01T21:00:00,NaN,1,0.950",
	} {
		if _, err := ParseRecord(line); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%q: expected ErrInvalidRecord, got %v", line, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for i := range 1000 {
		v := float64(i) / 999
		in := Record{t0.Add(time.Duration(i) * time.Second), v, i%2 == 0, 1 - v}
		out, err := ParseRecord(in.String())
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", in, err)
		}
		if math.Abs(out.BlueAvg-in.BlueAvg) > 0.0005 || math.Abs(out.FilterLevel-in.FilterLevel) > 0.0005 {
			t.Errorf("%v: round-trip changed values to %v", in, out)
		}
		if out.Active != in.Active || !out.Time.Equal(in.Time) {
			t.Errorf("%v: round-trip changed fields to %v", in, out)
		}
	}
}

func TestLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "p01.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("old session\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, r := range []Record{
		{t0, 0.5, true, 0.95},
		{t0.Add(time.Minute), 0.4, true, 0.905},
		{t0.Add(30 * time.Second), 0.3, false, 0.9145}, // clock went backwards
	} {
		if err := l.Append(r); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := l.Append(Record{t0, 2, true, 0.5}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for out of range record, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(buf), "\n"), "\n")
	if exp := []string{
		Header,
		"2025-01-01T21:00:00,0.500,1,0.950",
		"2025-01-01T21:01:00,0.400,1,0.905",
		"2025-01-01T21:01:00,0.300,0,0.914",
	}; strings.Join(lines, "\n") != strings.Join(exp, "\n") {
		t.Errorf("unexpected log contents:\n%s", buf)
	}

	var we *WriteError
	if err := l.Append(Record{t0, 0, false, 1}); !errors.As(err, &we) || we.Path != path {
		t.Errorf("expected WriteError after close, got %v", err)
	}

	records, err := Read(strings.NewReader(string(buf)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Time.Before(records[i-1].Time) {
			t.Errorf("record %d: timestamp %v before %v", i, records[i].Time, records[i-1].Time)
		}
	}
}

// shortFile writes half of the next fail writes before failing.
type shortFile struct {
	*os.File
	fail int
}

func (f *shortFile) Write(b []byte) (int, error) {
	if f.fail > 0 {
		f.fail--
		n, _ := f.File.Write(b[:len(b)/2])
		return n, errors.New("no space left on device")
	}
	return f.File.Write(b)
}

func TestLoggerPartialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p01.csv")
	l, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer l.Close()

	if err := l.Append(Record{t0, 0.5, true, 0.95}); err != nil {
		t.Fatalf("append: %v", err)
	}
	sf := &shortFile{File: l.f.(*os.File), fail: 1}
	l.f = sf

	var we *WriteError
	if err := l.Append(Record{t0.Add(time.Minute), 0.4, true, 0.905}); !errors.As(err, &we) {
		t.Fatalf("expected WriteError for a short write, got %v", err)
	}
	if err := l.Append(Record{t0.Add(time.Minute), 0.4, true, 0.905}); err != nil {
		t.Fatalf("retry: %v", err)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if exp := Header + "\n" +
		"2025-01-01T21:00:00,0.500,1,0.950\n" +
		"2025-01-01T21:01:00,0.400,1,0.905\n"; string(buf) != exp {
		t.Errorf("unexpected log contents after a failed write:\n%s", buf)
	}
}

func TestCreateError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	var we *WriteError
	if _, err := Create(filepath.Join(file, "log.csv")); !errors.As(err, &we) {
		t.Errorf("expected WriteError, got %v", err)
	}
}

func TestRead(t *testing.T) {
	records, err := Read(strings.NewReader("2025-01-01T21:00:00,0.423,1,0.950\n\n2025-01-01T21:01:00,0.100,0,0.900\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[1].BlueAvg != 0.1 || records[1].Active {
		t.Errorf("unexpected records %v", records)
	}
	if _, err := Read(strings.NewReader(Header + "\n" + Header + "\n")); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for repeated header, got %v", err)
	}
}

func TestLast(t *testing.T) {
	dir := t.TempDir()
	write := func(s string) string {
		path := filepath.Join(dir, "log.csv")
		if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	var long strings.Builder
	long.WriteString(Header + "\n")
	for i := range 1000 {
		long.WriteString(Record{t0.Add(time.Duration(i) * time.Minute), 0.5, true, 0.5}.String() + "\n")
	}

	for _, tc := range []struct {
		name string
		data string
		exp  string
		err  error
	}{
		{"empty", "", "", ErrNoRecords},
		{"header", Header + "\n", "", ErrNoRecords},
		{"header unterminated", Header, "", ErrNoRecords},
		{"one", Header + "\n2025-01-01T21:00:00,0.423,1,0.950\n", "2025-01-01T21:00:00,0.423,1,0.950", nil},
		{"no header", "2025-01-01T21:00:00,0.423,1,0.950\n", "2025-01-01T21:00:00,0.423,1,0.950", nil},
		{"partial", Header + "\n2025-01-01T21:00:00,0.423,1,0.950\n2025-01-01T21:01:00,0.1", "2025-01-01T21:00:00,0.423,1,0.950", nil},
		{"blank", Header + "\n2025-01-01T21:00:00,0.423,1,0.950\n\n\n", "2025-01-01T21:00:00,0.423,1,0.950", nil},
		{"crlf", Header + "\r\n2025-01-01T21:00:00,0.423,1,0.950\r\n", "2025-01-01T21:00:00,0.423,1,0.950", nil},
		{"long", long.String(), Record{t0.Add(999 * time.Minute), 0.5, true, 0.5}.String(), nil},
		{"invalid", Header + "\nbad\n", "", ErrInvalidRecord},
	} {
		r, err := Last(write(tc.data))
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("%s: expected error %v, got %v", tc.name, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if s := r.String(); s != tc.exp {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.exp, s)
		}
	}

	if _, err := Last(filepath.Join(dir, "nonexistent.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestLastLineChunkBoundary(t *testing.T) {
	line := "2025-01-01T21:00:00,0.423,1,0.950"
	for _, tc := range []struct {
		buf   string
		start bool
		line  string
		ok    bool
	}{
		{"", false, "", false},
		{line + "\n", false, "", false},
		{line + "\n", true, line, true},
		{"\n" + line + "\n", false, line, true},
		{"xx\n" + line + "\npartial", false, line, true},
		{"\n\n", false, "", false},
	} {
		l, ok := lastLine([]byte(tc.buf), tc.start)
		if l != tc.line || ok != tc.ok {
			t.Errorf("lastLine(%q, %t): expected (%q, %t), got (%q, %t)", tc.buf, tc.start, tc.line, tc.ok, l, ok)
		}
	}
}

func TestFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch := make(chan Record, 16)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, func(r Record) { ch <- r })
	}()

	l, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := range 3 {
		exp := Record{t0.Add(time.Duration(i) * time.Minute), 0.5, true, 1 - float64(i)/10}
		if err := l.Append(exp); err != nil {
			t.Fatal(err)
		}
		select {
		case r := <-ch:
			if r.String() != exp.String() {
				t.Errorf("expected %v, got %v", exp, r)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for record %d", i)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("unexpected follow error: %v", err)
	}
}

func TestParticipant(t *testing.T) {
	for in, exp := range map[string]string{
		"blue_light_log.csv":     "blue_light_log",
		"/data/logs/p01.csv":     "p01",
		"p02":                    "p02",
		"logs/participant.3.csv": "participant.3",
	} {
		if p := Participant(in); p != exp {
			t.Errorf("Participant(%q): expected %q, got %q", in, exp, p)
		}
	}
}
