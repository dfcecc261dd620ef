package log

import (
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var emojiMap = map[string]string{
	"startup":      "🚀",
	"account":      "👤",
	"scheduler":    "🎯",
	"circuit":      "🔌",
	"downstream":   "🔗",
	"event":        "📨",
	"request":      "🌐",
	"slow_request": "🐌",
	"cache_stats":  "🧹",
}

func statusEmoji(status int64) string {
	switch {
	case status >= 500:
		return "🔴"
	case status >= 400:
		return "🟠"
	case status >= 300:
		return "🟡"
	}
	return "🟢"
}

// EmojiConsoleEncoder wraps the zap console encoder and prefixes messages
// with an emoji picked from the "status" field, the "type" field or the level.
type EmojiConsoleEncoder struct {
	zapcore.Encoder
	config zapcore.EncoderConfig
}

// NewEmojiConsoleEncoder creates an EmojiConsoleEncoder.
func NewEmojiConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &EmojiConsoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		config:  cfg,
	}
}

// EncodeEntry implements zapcore.Encoder.
func (enc *EmojiConsoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	var logType string
	var status int64

	for _, field := range fields {
		switch {
		case field.Key == "type" && field.Type == zapcore.StringType:
			logType = field.String
		case field.Key == "status" && (field.Type == zapcore.Int64Type || field.Type == zapcore.Int32Type):
			status = field.Integer
		}
	}

	emoji := emojiFor(entry.Level, logType, status)
	if emoji != "" {
		entry.Message = emoji + " " + entry.Message
	}

	return enc.Encoder.EncodeEntry(entry, fields)
}

func emojiFor(level zapcore.Level, logType string, status int64) string {
	if status > 0 {
		return statusEmoji(status)
	}
	if e, ok := emojiMap[logType]; ok {
		return e
	}
	switch level {
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return "❌"
	case zapcore.WarnLevel:
		return "⚠️"
	case zapcore.InfoLevel:
		return "ℹ️"
	case zapcore.DebugLevel:
		return "🐛"
	}
	return ""
}

// Clone implements zapcore.Encoder.
func (enc *EmojiConsoleEncoder) Clone() zapcore.Encoder {
	return &EmojiConsoleEncoder{
		Encoder: enc.Encoder.Clone(),
		config:  enc.config,
	}
}
