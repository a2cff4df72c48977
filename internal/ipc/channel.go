// Package ipc implements the flat-file channels shared with the operator:
// a command file, a scan size file and a capture file name file.
//
// There is no locking or acknowledgment. Every access is preceded by a fixed
// settle delay to reduce torn reads against an external writer.
package ipc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/stagectl/internal/debug"
)

// Command is a directive read from the command file.
type Command int

const (
	CommandNone   Command = -1
	CommandStart  Command = 0
	CommandPause  Command = 1
	CommandRewind Command = 2
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandStart:
		return "start"
	case CommandPause:
		return "pause"
	case CommandRewind:
		return "rewind"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// SizeNone is the size code meaning "no scan size selected".
const SizeNone = -1

// Channel is what the stage controller reads from the operator.
// Reads never fail: when nothing new can be parsed the previously
// held value is returned.
type Channel interface {
	Command() Command
	Size() int
	FileName() string
}

// Paths of the three operator files.
type Paths struct {
	Command  string
	Size     string
	FileName string
}

// FileChannel reads directives from plain text files.
type FileChannel struct {
	paths  Paths
	settle time.Duration

	mu       sync.Mutex
	command  Command
	size     int
	fileName string
}

// NewFileChannel creates a channel over paths. settle is slept before every read and after every write.
func NewFileChannel(paths Paths, settle time.Duration) *FileChannel {
	return &FileChannel{
		paths:   paths,
		settle:  settle,
		command: CommandNone,
		size:    SizeNone,
	}
}

// Command reads the command file.
func (f *FileChannel) Command() Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.readInt(f.paths.Command); ok {
		f.command = Command(v)
	}
	return f.command
}

// Size reads the scan size file.
func (f *FileChannel) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.readInt(f.paths.Size); ok {
		f.size = v
	}
	return f.size
}

// FileName reads the capture base file name.
func (f *FileChannel) FileName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok, ok := f.readToken(f.paths.FileName); ok {
		f.fileName = tok
	}
	return f.fileName
}

// Reset writes "no command" and "no size" so a directive left over from a
// previous run cannot start motion.
func (f *FileChannel) Reset() error {
	if err := f.WriteCommand(CommandNone); err != nil {
		return err
	}
	return f.WriteSize(SizeNone)
}

// WriteCommand truncates the command file and writes c.
func (f *FileChannel) WriteCommand(c Command) error {
	return f.writeInt(f.paths.Command, int(c))
}

// WriteSize truncates the size file and writes s.
func (f *FileChannel) WriteSize(s int) error {
	return f.writeInt(f.paths.Size, s)
}

func (f *FileChannel) readToken(path string) (string, bool) {
	if f.settle > 0 {
		time.Sleep(f.settle)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		debug.Verbose("ipc: read %s: %v (keeping previous value)", path, err)
		return "", false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		debug.Verbose("ipc: %s is empty (keeping previous value)", path)
		return "", false
	}
	return fields[0], true
}

func (f *FileChannel) readInt(path string) (int, bool) {
	tok, ok := f.readToken(path)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		debug.Verbose("ipc: %s: %q is not an integer (keeping previous value)", path, tok)
		return 0, false
	}
	return v, true
}

func (f *FileChannel) writeInt(path string, v int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(v)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if f.settle > 0 {
		time.Sleep(f.settle)
	}
	return nil
}
