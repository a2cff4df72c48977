package ipc

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestChannel(t *testing.T) (*FileChannel, Paths) {
	t.Helper()
	dir := t.TempDir()
	p := Paths{
		Command:  filepath.Join(dir, "command_file.txt"),
		Size:     filepath.Join(dir, "size_file.txt"),
		FileName: filepath.Join(dir, "file_name.txt"),
	}
	return NewFileChannel(p, 0), p
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileChannel_InitialValues(t *testing.T) {
	ch, _ := newTestChannel(t)
	if got := ch.Command(); got != CommandNone {
		t.Errorf("Command() with no file = %v, want none", got)
	}
	if got := ch.Size(); got != SizeNone {
		t.Errorf("Size() with no file = %d, want -1", got)
	}
	if got := ch.FileName(); got != "" {
		t.Errorf("FileName() with no file = %q, want empty", got)
	}
}

func TestFileChannel_ParsesValues(t *testing.T) {
	cases := []struct {
		content string
		want    Command
	}{
		{"0", CommandStart},
		{"1\n", CommandPause},
		{"  2  \n", CommandRewind},
		{"-1", CommandNone},
		{"0 trailing", CommandStart},
	}
	for _, tc := range cases {
		t.Run(tc.content, func(t *testing.T) {
			ch, p := newTestChannel(t)
			write(t, p.Command, tc.content)
			if got := ch.Command(); got != tc.want {
				t.Errorf("Command() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFileChannel_KeepsPreviousOnBadRead(t *testing.T) {
	ch, p := newTestChannel(t)
	write(t, p.Command, "0")
	if got := ch.Command(); got != CommandStart {
		t.Fatalf("Command() = %v, want start", got)
	}

	cases := []struct {
		name  string
		setup func()
	}{
		{"empty", func() { write(t, p.Command, "") }},
		{"whitespace", func() { write(t, p.Command, " \n") }},
		{"garbage", func() { write(t, p.Command, "go") }},
		{"missing", func() { _ = os.Remove(p.Command) }},
	}
	for _, tc := range cases {
		tc.setup()
		if got := ch.Command(); got != CommandStart {
			t.Errorf("%s: Command() = %v, want previous value start", tc.name, got)
		}
	}
}

func TestFileChannel_SizeAndFileName(t *testing.T) {
	ch, p := newTestChannel(t)
	write(t, p.Size, "2\n")
	write(t, p.FileName, "slide_042\n")

	if got := ch.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
	if got := ch.FileName(); got != "slide_042" {
		t.Errorf("FileName() = %q, want slide_042", got)
	}

	write(t, p.FileName, "")
	if got := ch.FileName(); got != "slide_042" {
		t.Errorf("FileName() after empty file = %q, want previous value", got)
	}
}

func TestFileChannel_ResetWritesNone(t *testing.T) {
	ch, p := newTestChannel(t)
	write(t, p.Command, "0")
	write(t, p.Size, "1")

	if err := ch.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, path := range []string{p.Command, p.Size} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "-1\n" {
			t.Errorf("%s = %q, want \"-1\\n\"", filepath.Base(path), data)
		}
	}
	if got := ch.Command(); got != CommandNone {
		t.Errorf("Command() after Reset = %v, want none", got)
	}
}

func TestFileChannel_WriteCommandRoundTrip(t *testing.T) {
	ch, _ := newTestChannel(t)
	if err := ch.WriteCommand(CommandRewind); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if got := ch.Command(); got != CommandRewind {
		t.Errorf("Command() = %v, want rewind", got)
	}
}

func TestFileChannel_ImplementsChannel(t *testing.T) {
	var _ Channel = &FileChannel{}
}

func TestCommandString(t *testing.T) {
	if CommandPause.String() != "pause" || Command(9).String() != "Command(9)" {
		t.Errorf("unexpected strings: %q %q", CommandPause.String(), Command(9).String())
	}
}
