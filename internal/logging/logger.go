package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyFile is an append-only writer that switches to a new file when the
// calendar day changes.
type DailyFile struct {
	mu   sync.Mutex
	dir  string
	day  string
	file *os.File
	now  func() time.Time
}

// NewDailyFile creates a DailyFile under dir. The directory is created on first write.
func NewDailyFile(dir string) *DailyFile {
	return &DailyFile{dir: dir, now: time.Now}
}

// FileName returns the log file name for the given day.
func FileName(t time.Time) string {
	return fmt.Sprintf("test_%s.log", t.Format("2006-01-02"))
}

// Path returns the path of the file the next write goes to.
func (d *DailyFile) Path() string {
	return filepath.Join(d.dir, FileName(d.now()))
}

// Write implements io.Writer.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.now().Format("2006-01-02")
	if d.file == nil || day != d.day {
		if d.file != nil {
			d.file.Close()
			d.file = nil
		}
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return 0, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(d.dir, FileName(d.now())), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, fmt.Errorf("open log file: %w", err)
		}
		d.file = f
		d.day = day
	}
	return d.file.Write(p)
}

// Close closes the current file. Further writes reopen it.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Options configures New.
type Options struct {
	// Dir is the log directory. Empty disables the file sink.
	Dir string
	// Verbose mirrors log lines to Stdout.
	Verbose bool
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
	// Level defaults to slog.LevelInfo.
	Level slog.Leveler
}

// New creates the process logger and returns a close function for its file sink.
func New(opts Options) (*slog.Logger, func() error) {
	var writers []io.Writer
	closeFn := func() error { return nil }

	if opts.Verbose {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		writers = append(writers, out)
	}
	if opts.Dir != "" {
		df := NewDailyFile(opts.Dir)
		writers = append(writers, df)
		closeFn = df.Close
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}
	return slog.New(NewHandler(w, opts.Level)), closeFn
}
