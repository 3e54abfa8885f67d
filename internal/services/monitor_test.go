package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestResourceMonitor_GetSystemStats(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	monitor := NewResourceMonitor(logger)
	stats := monitor.GetSystemStats(context.Background())

	assert.Positive(t, stats.Goroutines)
	assert.NotEmpty(t, stats.Uptime)
	assert.False(t, stats.Timestamp.IsZero())
	assert.GreaterOrEqual(t, stats.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, stats.MemoryPercent, 0.0)
}
