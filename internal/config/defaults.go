package config

const (
	defaultDataDir               = "~/.local/share/alertcast"
	defaultLogDir                = "~/.local/share/alertcast/logs"
	defaultAPIBind               = "127.0.0.1:7733"
	defaultDurationSeconds       = 5
	defaultStaleGraceSeconds     = 10
	defaultDeadLetterMinutes     = 15
	defaultSweepIntervalSeconds  = 2
	defaultErrorRetrySeconds     = 5
	defaultHistoryPageSize       = 50
	defaultSurface               = "primary"
	defaultReportRetryBackoff    = 2
	defaultPausePollSeconds      = 1
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			DefaultDurationSeconds: defaultDurationSeconds,
			StaleGraceSeconds:      defaultStaleGraceSeconds,
			DeadLetterMinutes:      defaultDeadLetterMinutes,
			SweepIntervalSeconds:   defaultSweepIntervalSeconds,
			ErrorRetrySeconds:      defaultErrorRetrySeconds,
			HistoryPageSize:        defaultHistoryPageSize,
		},
		Playback: Playback{
			Surface:                   defaultSurface,
			ReportRetryBackoffSeconds: defaultReportRetryBackoff,
			PausePollIntervalSeconds:  defaultPausePollSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			PauseEvents:    true,
			ReportFailures: true,
			DeadLetter:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
