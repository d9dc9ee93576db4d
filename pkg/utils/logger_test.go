package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true, "")
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("development logger should log debug")
		}
		_ = logger.Sync()
	})

	t.Run("production mode honours level", func(t *testing.T) {
		logger, err := NewLogger(false, "warn")
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) {
			t.Error("warn logger should not log info")
		}
		_ = logger.Sync()
	})

	t.Run("bad level", func(t *testing.T) {
		if _, err := NewLogger(false, "loud"); err == nil {
			t.Error("expected error for unknown level")
		}
	})
}
