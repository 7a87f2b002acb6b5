package samplelog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WriteError is returned when the log cannot be created or appended to.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return "samplelog: write " + e.Path + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// logFile is the part of *os.File used by Logger.
type logFile interface {
	io.WriteSeeker
	Truncate(size int64) error
	Close() error
}

// Logger appends records to a log file. It is safe for concurrent use.
type Logger struct {
	path string

	mu   sync.Mutex
	f    logFile
	last time.Time
	buf  []byte
}

// Create truncates (or creates) the log at path, creating the parent directory
// if needed, and writes the header.
func Create(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &WriteError{Path: path, Err: err}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	if _, err := f.WriteString(Header + "\n"); err != nil {
		f.Close()
		return nil, &WriteError{Path: path, Err: err}
	}
	return &Logger{path: path, f: f}, nil
}

// Path returns the path of the log file.
func (l *Logger) Path() string {
	return l.path
}

// Append writes a record. Timestamps earlier than the previous record's are
// clamped to it so the log stays ordered if the wall clock goes backwards.
// Invalid records are rejected with ErrInvalidRecord, and I/O errors are
// returned as a *WriteError.
func (l *Logger) Append(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return &WriteError{Path: l.path, Err: os.ErrClosed}
	}
	if r.Time.Before(l.last) {
		r.Time = l.last
	}
	off, err := l.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return &WriteError{Path: l.path, Err: fmt.Errorf("append record: %w", err)}
	}
	l.buf = append(r.AppendCSV(l.buf[:0]), '\n')
	if _, err := l.f.Write(l.buf); err != nil {
		// drop any partial line so a retry starts on a line boundary
		if terr := l.rewind(off); terr != nil {
			err = errors.Join(err, terr)
		}
		return &WriteError{Path: l.path, Err: fmt.Errorf("append record: %w", err)}
	}
	l.last = r.Time
	return nil
}

func (l *Logger) rewind(off int64) error {
	if err := l.f.Truncate(off); err != nil {
		return fmt.Errorf("truncate partial record: %w", err)
	}
	if _, err := l.f.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return &WriteError{Path: l.path, Err: err}
	}
	return nil
}
