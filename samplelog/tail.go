package samplelog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// lastChunk is the number of bytes read at a time by Last.
const lastChunk = 4096

// Last reads the last complete record of the log at path, reading backwards
// from the end until a newline-terminated data line is found. A trailing line
// without a newline (i.e., one still being written) is ignored. If the log
// only contains the header, ErrNoRecords is returned.
func Last(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Record{}, err
	}

	var (
		buf []byte
		off = fi.Size()
	)
	for {
		if line, ok := lastLine(buf, off == 0); ok {
			if line == Header {
				return Record{}, ErrNoRecords
			}
			return ParseRecord(line)
		}
		if off == 0 {
			return Record{}, ErrNoRecords
		}
		n := min(lastChunk, off)
		off -= n
		chunk := make([]byte, n, int(n)+len(buf))
		if _, err := f.ReadAt(chunk, off); err != nil {
			return Record{}, fmt.Errorf("read %s: %w", path, err)
		}
		buf = append(chunk, buf...)
	}
}

// lastLine returns the last complete non-blank line of buf, which is the tail
// of a file. If start is true, buf also begins at the start of the file.
func lastLine(buf []byte, start bool) (string, bool) {
	end := bytes.LastIndexByte(buf, '\n')
	for end >= 0 {
		begin := bytes.LastIndexByte(buf[:end], '\n')
		if begin < 0 && !start {
			return "", false // might be incomplete
		}
		if line := strings.TrimSpace(string(buf[begin+1 : end])); line != "" {
			return line, true
		}
		end = begin
	}
	return "", false
}

// Follow calls fn with the last record of the log at path, then again whenever
// a new one is written, until ctx is cancelled. The log does not need to
// exist yet, but its directory does.
func Follow(ctx context.Context, path string, fn func(Record)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	var (
		prev Record
		have bool
	)
	update := func() error {
		r, err := Last(path)
		if err != nil {
			if errors.Is(err, ErrNoRecords) || errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if have && r.Time.Equal(prev.Time) && r.String() == prev.String() {
			return nil
		}
		prev, have = r, true
		fn(r)
		return nil
	}
	if err := update(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == path && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				if err := update(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
