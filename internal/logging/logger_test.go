package logging

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/assessd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_NoOutputs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stdout = false
	cfg.Output.OTEL = true

	// OTEL enabled but no provider means nothing to write to.
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tests := []struct {
		name  string
		log   func(string)
		level zapcore.Level
	}{
		{"trace", func(m string) { tl.Trace(ctx, m) }, TraceLevel},
		{"debug", func(m string) { tl.Debug(ctx, m) }, zapcore.DebugLevel},
		{"info", func(m string) { tl.Info(ctx, m) }, zapcore.InfoLevel},
		{"warn", func(m string) { tl.Warn(ctx, m) }, zapcore.WarnLevel},
		{"error", func(m string) { tl.Error(ctx, m) }, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.log(tt.name + " message")
			tl.AssertLogged(t, tt.level, tt.name+" message")
		})
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.With(zap.String("component", "reranker")).Named("scoring")

	child.Info(context.Background(), "scored", zap.Int("candidates", 50))

	entries := tl.FilterMessage("scored").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "scoring", entries[0].LoggerName)
	assert.Equal(t, "reranker", entries[0].ContextMap()["component"])
	assert.Equal(t, int64(50), entries[0].ContextMap()["candidates"])
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromSettings(config.LoggingConfig{Format: "xml"})
	require.Error(t, err)

	_, err = FromSettings(config.LoggingConfig{Level: "verbose"})
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"no output", func(c *Config) { c.Output.Stdout = false }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"negative skip", func(c *Config) { c.Caller.Skip = -1 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field", func(c *Config) { c.Fields = map[string]string{"k": ""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, NewDefaultConfig().Validate())
}
