// internal/config/config.go
package config

import (
	"errors"
	"log"

	"github.com/spf13/viper"
)

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	From string `mapstructure:"from"`
}

type SESConfig struct {
	Region          string `mapstructure:"region"`
	From            string `mapstructure:"from"`
	AuthType        string `mapstructure:"auth_type"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// JobsConfig tunes the batch pipelines. Zero values fall back to the
// defaults in constants.go.
type JobsConfig struct {
	BatchSize              int    `mapstructure:"batch_size"`
	Concurrency            int    `mapstructure:"concurrency"`
	ActiveUserWindowDays   int    `mapstructure:"active_user_window_days"`
	ActiveUserLimit        int    `mapstructure:"active_user_limit"`
	PauseBetweenBatchesMS  int    `mapstructure:"pause_between_batches_ms"`
	StatsBatchSize         int    `mapstructure:"stats_batch_size"`
	StatsConcurrentBatches int    `mapstructure:"stats_concurrent_batches"`
	StatsUserLimit         int    `mapstructure:"stats_user_limit"`
	StatsRefreshMinutes    int    `mapstructure:"stats_refresh_minutes"`
	StatsPauseMS           int    `mapstructure:"stats_pause_ms"`
	DailySchedule          string `mapstructure:"daily_schedule"`
	StatsSchedule          string `mapstructure:"stats_schedule"`
	TimeoutMinutes         int    `mapstructure:"timeout_minutes"`
}

type Config struct {
	App struct {
		Name        string `mapstructure:"name"`
		FrontendURL string `mapstructure:"frontend_url"`
	} `mapstructure:"app"`
	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	CORS struct {
		AllowedOrigins   []string `mapstructure:"allowed_origins"`
		AllowedMethods   []string `mapstructure:"allowed_methods"`
		AllowedHeaders   []string `mapstructure:"allowed_headers"`
		ExposedHeaders   []string `mapstructure:"exposed_headers"`
		AllowCredentials bool     `mapstructure:"allow_credentials"`
		MaxAge           int      `mapstructure:"max_age"`
	} `mapstructure:"cors"`
	JWT struct {
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"jwt"`
	Cert struct {
		Secret     string `mapstructure:"secret"`
		CodePrefix string `mapstructure:"code_prefix"`
	} `mapstructure:"cert"`
	Jobs   JobsConfig `mapstructure:"jobs"`
	Mailer struct {
		Type string `mapstructure:"type"`
	} `mapstructure:"mailer"`
	SMTP SMTPConfig `mapstructure:"smtp"`
	SES  SESConfig  `mapstructure:"ses"`
}

var Cfg Config

func LoadConfig(path string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("cert.secret", "CERT_SECRET")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Warning: Config file not found. Using default settings or environment variables if available.")
		} else {
			log.Printf("Error reading config file: %s\n", err)
			return err
		}
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		log.Printf("Error unmarshalling config: %s\n", err)
		return err
	}

	applyDefaults(&Cfg)

	// The verification hash is keyed on this secret. Refusing to start
	// without it beats silently issuing unverifiable certificates.
	if Cfg.Cert.Secret == "" {
		return errors.New("config: cert.secret (CERT_SECRET) is required")
	}
	if Cfg.Database.URL == "" {
		log.Println("Warning: Database URL is not set in config.")
	}

	log.Println("Config loaded successfully")
	log.Printf("Server Port: %s", Cfg.Server.Port)
	log.Printf("Daily job schedule: %s", Cfg.Jobs.DailySchedule)

	return nil
}

func applyDefaults(c *Config) {
	if c.App.Name == "" {
		c.App.Name = AppName
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Cert.CodePrefix == "" {
		c.Cert.CodePrefix = DefaultCertCodePrefix
	}
	j := &c.Jobs
	if j.BatchSize <= 0 {
		j.BatchSize = DefaultJobBatchSize
	}
	if j.Concurrency <= 0 {
		j.Concurrency = DefaultJobConcurrency
	}
	if j.ActiveUserWindowDays <= 0 {
		j.ActiveUserWindowDays = DefaultActiveUserWindowDays
	}
	if j.ActiveUserLimit <= 0 {
		j.ActiveUserLimit = DefaultActiveUserLimit
	}
	if j.PauseBetweenBatchesMS <= 0 {
		j.PauseBetweenBatchesMS = DefaultJobPauseMS
	}
	if j.StatsBatchSize <= 0 {
		j.StatsBatchSize = DefaultStatsBatchSize
	}
	if j.StatsConcurrentBatches <= 0 {
		j.StatsConcurrentBatches = DefaultStatsConcurrentBatches
	}
	if j.StatsUserLimit <= 0 {
		j.StatsUserLimit = DefaultStatsUserLimit
	}
	if j.StatsRefreshMinutes <= 0 {
		j.StatsRefreshMinutes = DefaultStatsRefreshMinutes
	}
	if j.StatsPauseMS <= 0 {
		j.StatsPauseMS = DefaultStatsPauseMS
	}
	if j.DailySchedule == "" {
		j.DailySchedule = DefaultDailySchedule
	}
	if j.StatsSchedule == "" {
		j.StatsSchedule = DefaultStatsSchedule
	}
	if j.TimeoutMinutes <= 0 {
		j.TimeoutMinutes = DefaultJobTimeoutMinutes
	}
}
