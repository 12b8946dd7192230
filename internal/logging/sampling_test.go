package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    time.Minute,
		Levels: map[zapcore.Level]LevelSampling{
			zapcore.InfoLevel: {Initial: 2},
		},
	})
	logger := zap.New(sampled)

	for i := 0; i < 10; i++ {
		logger.Info("info")
		logger.Error("error")
	}

	assert.Equal(t, 2, observed.FilterMessage("info").Len())
	assert.Equal(t, 10, observed.FilterMessage("error").Len())
}

func TestSampledCore_UnconfiguredLevelPasses(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := zap.New(newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    time.Minute,
		Levels:  map[zapcore.Level]LevelSampling{},
	}))

	for i := 0; i < 5; i++ {
		logger.Warn("warn")
	}
	assert.Equal(t, 5, observed.Len())
}

func TestSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(TraceLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{}))
}
