package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizePlayback()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.DefaultDurationSeconds <= 0 {
		c.Queue.DefaultDurationSeconds = defaultDurationSeconds
	}
	if c.Queue.StaleGraceSeconds <= 0 {
		c.Queue.StaleGraceSeconds = defaultStaleGraceSeconds
	}
	if c.Queue.DeadLetterMinutes <= 0 {
		c.Queue.DeadLetterMinutes = defaultDeadLetterMinutes
	}
	if c.Queue.SweepIntervalSeconds <= 0 {
		c.Queue.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.Queue.ErrorRetrySeconds <= 0 {
		c.Queue.ErrorRetrySeconds = defaultErrorRetrySeconds
	}
	if c.Queue.HistoryPageSize <= 0 {
		c.Queue.HistoryPageSize = defaultHistoryPageSize
	}
}

func (c *Config) normalizePlayback() {
	c.Playback.Surface = strings.TrimSpace(c.Playback.Surface)
	if c.Playback.Surface == "" {
		c.Playback.Surface = defaultSurface
	}
	if c.Playback.ReportRetryBackoffSeconds <= 0 {
		c.Playback.ReportRetryBackoffSeconds = defaultReportRetryBackoff
	}
	if c.Playback.PausePollIntervalSeconds <= 0 {
		c.Playback.PausePollIntervalSeconds = defaultPausePollSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
