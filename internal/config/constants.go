// internal/config/constants.go
package config

const (
	AppName    = "learn-rewards"
	AppVersion = "1.0.0"
)

const (
	DefaultServerPort     = ":8080"
	DefaultLogLevel       = "info"
	DefaultCertCodePrefix = "MAI"
)

// Batch job defaults.
const (
	DefaultJobBatchSize           = 50
	DefaultJobConcurrency         = 10
	DefaultActiveUserWindowDays   = 30
	DefaultActiveUserLimit        = 1000
	DefaultJobPauseMS             = 100
	DefaultStatsBatchSize         = 25
	DefaultStatsConcurrentBatches = 3
	DefaultStatsUserLimit         = 2000
	DefaultStatsRefreshMinutes    = 60
	DefaultStatsPauseMS           = 200
	DefaultDailySchedule          = "0 3 * * *"
	DefaultStatsSchedule          = "30 3 * * *"
	DefaultJobTimeoutMinutes      = 30
)
