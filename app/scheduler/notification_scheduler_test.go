package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogConfigDefaults(t *testing.T) {
	cfg := LogConfig{}
	cfg.applyDefaults()

	assert.Equal(t, "both", cfg.Output)
	assert.Equal(t, 20, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxBackups)
	assert.Equal(t, 30, cfg.MaxAgeDays)
}

func TestSchedulerLogsToConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sched", "notifier.log")
	s := NewNotificationScheduler(nil, 0, LogConfig{
		Output:   "file",
		FilePath: path,
	})

	s.logger.Printf("pass started")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "pass started")
}

func TestSchedulerStdoutOnly(t *testing.T) {
	dir := t.TempDir()
	s := NewNotificationScheduler(nil, 0, LogConfig{
		Output:   "stdout",
		FilePath: filepath.Join(dir, "ignored.log"),
	})

	s.logger.Printf("tick")

	_, err := os.Stat(filepath.Join(dir, "ignored.log"))
	assert.True(t, os.IsNotExist(err))
}
