package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the default time format used by console and test appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface, so
// zap cores such as the test observer can be used directly.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender writes human readable log lines to an `io.Writer`.
type ConsoleAppender struct {
	mu      sync.Mutex
	encoder zapcore.Encoder
	out     io.Writer
}

// NewStdoutAppender creates a new appender that outputs to stdout.
func NewStdoutAppender() *ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a new appender that outputs to the input writer.
func NewWriterAppender(writer io.Writer) *ConsoleAppender {
	return &ConsoleAppender{encoder: zapcore.NewConsoleEncoder(NewEncoderConfig()), out: writer}
}

// FileAppender writes console formatted lines to a file that is rotated by size.
type FileAppender struct {
	*ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender appends to path, rotating it once it grows past maxSizeMB and keeping
// maxBackups compressed older files.
func NewFileAppender(path string, maxSizeMB, maxBackups int) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	cfg := NewEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &FileAppender{
		ConsoleAppender: &ConsoleAppender{encoder: zapcore.NewConsoleEncoder(cfg), out: file},
		file:            file,
	}
}

// Close closes the current log file.
func (appender *FileAppender) Close() error {
	appender.mu.Lock()
	defer appender.mu.Unlock()
	return appender.file.Close()
}

// Write outputs the log entry to the underlying stream.
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err = appender.out.Write(buf.Bytes())
	return err
}

// Sync flushes the underlying writer when it supports syncing.
func (appender *ConsoleAppender) Sync() error {
	if syncer, ok := appender.out.(interface{ Sync() error }); ok {
		appender.mu.Lock()
		defer appender.mu.Unlock()
		//nolint:errcheck
		syncer.Sync()
	}
	return nil
}
