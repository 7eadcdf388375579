// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	businessflow "github.com/peykaro/whatsapp-dispatch/business_flow"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// LogConfig controls where the scheduler writes its log and how the
// rotating file behaves. Zero values fall back to the defaults below.
type LogConfig struct {
	Output     string // stdout, file, both
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (c *LogConfig) applyDefaults() {
	if c.Output == "" {
		c.Output = "both"
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 20
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// NotificationScheduler drives the time-based notification rules: the
// date-based pass runs once per UTC day, the cron-style pass on every
// tick.
type NotificationScheduler struct {
	flow     businessflow.NotificationFlow
	logger   *log.Logger
	interval time.Duration

	lastDailyRun string
}

func NewNotificationScheduler(flow businessflow.NotificationFlow, interval time.Duration, logCfg LogConfig) *NotificationScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	s := &NotificationScheduler{
		flow:     flow,
		interval: interval,
	}
	s.initLogger(logCfg)
	return s
}

func (s *NotificationScheduler) initLogger(cfg LogConfig) {
	cfg.applyDefaults()
	if cfg.Output == "stdout" {
		s.logger = log.New(os.Stdout, "notifier ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}

	rotator := s.openRotator(cfg)
	if rotator == nil {
		s.logger = log.Default()
		s.logger.Printf("scheduler: could not create log file, using stdout only")
		return
	}

	var w io.Writer = rotator
	if cfg.Output != "file" {
		w = io.MultiWriter(os.Stdout, rotator)
	}
	s.logger = log.New(w, "notifier ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// openRotator creates the rotating log file. Without a configured path
// it tries data/ then /data for containerized environments.
func (s *NotificationScheduler) openRotator(cfg LogConfig) *lumberjack.Logger {
	candidates := []string{
		filepath.Join("data", "notification_scheduler.log"),
		filepath.Join("/data", "notification_scheduler.log"),
	}
	if cfg.FilePath != "" {
		candidates = []string{cfg.FilePath}
	}
	for _, path := range candidates {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			continue
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}
	return nil
}

// Start launches the scheduler loop in a background goroutine and
// returns a stop function
func (s *NotificationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *NotificationScheduler) runOnce(ctx context.Context) {
	today := utils.UTCNow().Format("2006-01-02")
	if s.lastDailyRun != today {
		if err := s.flow.ProcessDateBased(ctx); err != nil {
			s.logger.Printf("scheduler: date-based pass failed: %v", err)
		} else {
			s.lastDailyRun = today
			s.logger.Printf("scheduler: date-based pass done for %s", today)
		}
	}

	if err := s.flow.ProcessCron(ctx); err != nil {
		s.logger.Printf("scheduler: cron pass failed: %v", err)
	}
}
