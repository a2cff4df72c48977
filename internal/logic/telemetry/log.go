// Package telemetry writes the position and timing logs read by external
// monitors, and runs the transfer hook once a raster completes.
package telemetry

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// FileLog is an append-only line log. The file is opened on the first
// Append and stays open until Close.
type FileLog struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) Path() string { return l.path }

// Append writes line followed by a newline.
func (l *FileLog) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("open %s: %w", l.path, err)
		}
		l.f = f
	}
	if _, err := l.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append %s: %w", l.path, err)
	}
	return nil
}

// Close releases the file handle. The next Append reopens it.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *FileLog) closeLocked() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", l.path, err)
	}
	return nil
}

// Truncate empties the file, creating it if needed.
func (l *FileLog) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.closeLocked(); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("truncate %s: %w", l.path, err)
	}
	return f.Close()
}

// PositionRecord formats one position log line.
func PositionRecord(x, y int) string {
	return strconv.Itoa(x) + " " + strconv.Itoa(y)
}

// FormatSeconds formats d as seconds with six significant digits.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'g', 6, 64)
}
