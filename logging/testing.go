package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// tbAppender routes entries to a test's Log so output stays with the test that produced it.
type tbAppender struct {
	tb      testing.TB
	encoder zapcore.Encoder
}

// NewTestAppender returns an Appender writing plain console lines to tb.
func NewTestAppender(tb testing.TB) Appender {
	cfg := NewEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr)
	cfg.SkipLineEnding = true
	return &tbAppender{tb: tb, encoder: zapcore.NewConsoleEncoder(cfg)}
}

func (a *tbAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	a.tb.Helper()
	buf, err := a.encoder.EncodeEntry(entry, fields)
	if err != nil {
		a.tb.Log(entry.Message)
		return err
	}
	defer buf.Free()
	a.tb.Log(strings.TrimRight(buf.String(), "\n"))
	return nil
}

func (a *tbAppender) Sync() error {
	return nil
}
