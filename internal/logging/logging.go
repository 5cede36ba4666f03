// Package logging builds the loggers shared by every component.
//
// Components own a *log.Logger with a bracketed prefix ("[sync] ",
// "[daemon] ", ...). This package only decides where the lines go: stderr,
// or stderr plus a size-rotated log file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the shared writer.
type Options struct {
	// File enables the rotating log file when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Verbose enables the loggers returned by Debug.
	Verbose bool

	// Console defaults to os.Stderr.
	Console io.Writer
}

// Logging hands out prefixed loggers over one writer.
type Logging struct {
	out     io.Writer
	rotator *lumberjack.Logger
	verbose bool
}

// New creates the shared writer. The log directory is created if needed.
func New(opts Options) (*Logging, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logging{out: console, verbose: opts.Verbose}
	if opts.File == "" {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, err
	}
	l.rotator = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	l.out = io.MultiWriter(console, l.rotator)
	return l, nil
}

// Logger returns a logger writing "[name] " prefixed lines.
func (l *Logging) Logger(name string) *log.Logger {
	return log.New(l.out, "["+name+"] ", log.LstdFlags)
}

// Debug returns Logger(name) when verbose, otherwise a logger that drops
// everything. Adapters log per-request detail through it.
func (l *Logging) Debug(name string) *log.Logger {
	if !l.verbose {
		return log.New(io.Discard, "", 0)
	}
	return l.Logger(name)
}

// Verbose reports whether debug output is enabled.
func (l *Logging) Verbose() bool {
	return l.verbose
}

// Writer returns the underlying writer.
func (l *Logging) Writer() io.Writer {
	return l.out
}

// Close closes the log file, if any.
func (l *Logging) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

// Discard returns a Logging that drops everything.
func Discard() *Logging {
	return &Logging{out: io.Discard}
}
