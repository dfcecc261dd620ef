package log

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encode(t *testing.T, level zapcore.Level, fields ...zapcore.Field) string {
	t.Helper()
	enc := NewEmojiConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg", LevelKey: "level", EncodeLevel: zapcore.LowercaseLevelEncoder})
	buf, err := enc.EncodeEntry(zapcore.Entry{Level: level, Message: "hello", Time: time.Now()}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestEmojiConsoleEncoder(t *testing.T) {
	tests := []struct {
		name   string
		level  zapcore.Level
		fields []zapcore.Field
		emoji  string
	}{
		{"type tag", zapcore.InfoLevel, []zapcore.Field{zap.String("type", "event")}, "📨"},
		{"circuit tag", zapcore.WarnLevel, []zapcore.Field{zap.String("type", "circuit")}, "🔌"},
		{"server error status", zapcore.InfoLevel, []zapcore.Field{zap.Int64("status", 503)}, "🔴"},
		{"client error status", zapcore.InfoLevel, []zapcore.Field{zap.Int64("status", 404)}, "🟠"},
		{"ok status", zapcore.InfoLevel, []zapcore.Field{zap.Int64("status", 200)}, "🟢"},
		{"error level", zapcore.ErrorLevel, nil, "❌"},
		{"warn level", zapcore.WarnLevel, nil, "⚠️"},
		{"unknown type falls back to level", zapcore.DebugLevel, []zapcore.Field{zap.String("type", "other")}, "🐛"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, encode(t, tt.level, tt.fields...), tt.emoji+" hello")
		})
	}
}

func TestEmojiConsoleEncoder_Clone(t *testing.T) {
	enc := NewEmojiConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	clone := enc.Clone()
	_, ok := clone.(*EmojiConsoleEncoder)
	assert.True(t, ok)
}
