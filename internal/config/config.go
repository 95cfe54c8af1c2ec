package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	"agriloan/internal/deployment"
	"agriloan/internal/monitor"
	appuc "agriloan/internal/usecase/application"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MySQLHost string `env:"MYSQL_HOST" envDefault:"mysql"`
	MySQLPort string `env:"MYSQL_PORT" envDefault:"3306"`
	MySQLDB   string `env:"MYSQL_DB" envDefault:"agriloan"`
	MySQLUser string `env:"MYSQL_USER" envDefault:"agriloan"`
	MySQLPass string `env:"MYSQL_PASS" envDefault:"agriloan"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"redis:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	IdempTTLSecs int    `env:"IDEMPOTENCY_TTL_SECONDS" envDefault:"300"`
	JWTSecret    string `env:"JWT_SECRET"`

	ModelPath         string        `env:"MODEL_PATH" envDefault:"models/loan_predictor.json"`
	ModelBackupPath   string        `env:"MODEL_BACKUP_PATH" envDefault:"models/backup"`
	ModelVersion      string        `env:"MODEL_VERSION" envDefault:"1.0.0"`
	PredictionTimeout time.Duration `env:"PREDICTION_TIMEOUT" envDefault:"30s"`
	LargeLoanMWK      float64       `env:"LARGE_LOAN_THRESHOLD" envDefault:"1000000"`

	HealthCheckInterval  time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	CleanupAt            string        `env:"CLEANUP_AT" envDefault:"02:00"`
	RetentionDays        int           `env:"PREDICTION_RETENTION_DAYS" envDefault:"365"`
	SchedulerStopTimeout time.Duration `env:"SCHEDULER_STOP_TIMEOUT" envDefault:"5s"`

	FallbackRevenueRatio float64 `env:"FALLBACK_REVENUE_RATIO" envDefault:"0.5"`
	FallbackCeiling      float64 `env:"FALLBACK_CEILING" envDefault:"300000"`

	CPUWarnPercent    float64       `env:"CPU_WARNING_PERCENT" envDefault:"90"`
	MemoryWarnPercent float64       `env:"MEMORY_WARNING_PERCENT" envDefault:"85"`
	DiskWarnPercent   float64       `env:"DISK_WARNING_PERCENT" envDefault:"90"`
	MaxErrorRate      float64       `env:"MAX_ERROR_RATE" envDefault:"0.1"`
	MaxAvgLatency     time.Duration `env:"MAX_AVG_LATENCY" envDefault:"5s"`
}

// Load reads an optional .env file, then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.JWTSecret == "" {
		return errors.New("missing JWT_SECRET")
	}
	if c.ModelPath == "" || c.ModelBackupPath == "" {
		return errors.New("missing MODEL_PATH/MODEL_BACKUP_PATH")
	}
	if c.PredictionTimeout <= 0 || c.HealthCheckInterval <= 0 || c.SchedulerStopTimeout <= 0 {
		return errors.New("PREDICTION_TIMEOUT, HEALTH_CHECK_INTERVAL and SCHEDULER_STOP_TIMEOUT must be positive")
	}
	if _, _, err := deployment.ParseClock(c.CleanupAt); err != nil {
		return fmt.Errorf("invalid CLEANUP_AT %q: %w", c.CleanupAt, err)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("PREDICTION_RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	if c.FallbackRevenueRatio <= 0 || c.FallbackRevenueRatio > 1 {
		return fmt.Errorf("FALLBACK_REVENUE_RATIO must be in (0,1], got %v", c.FallbackRevenueRatio)
	}
	if c.FallbackCeiling <= 0 {
		return errors.New("FALLBACK_CEILING must be positive")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempTTLSecs) * time.Second
}

func (c *Config) Thresholds() monitor.Thresholds {
	return monitor.Thresholds{
		CPUPercent:    c.CPUWarnPercent,
		MemoryPercent: c.MemoryWarnPercent,
		DiskPercent:   c.DiskWarnPercent,
		ErrorRate:     c.MaxErrorRate,
		AvgLatency:    c.MaxAvgLatency,
	}
}

// Fallback keeps the default confidence; only the amount formula is tunable.
func (c *Config) Fallback() appuc.FallbackPolicy {
	p := appuc.DefaultFallback()
	p.RevenueRatio = c.FallbackRevenueRatio
	p.Ceiling = c.FallbackCeiling
	return p
}

// Deployment assumes Validate has passed.
func (c *Config) Deployment() deployment.Config {
	hh, mm, _ := deployment.ParseClock(c.CleanupAt)
	return deployment.Config{
		BackupDir:      c.ModelBackupPath,
		HealthInterval: c.HealthCheckInterval,
		CleanupHour:    hh,
		CleanupMinute:  mm,
		Retention:      time.Duration(c.RetentionDays) * 24 * time.Hour,
		StopTimeout:    c.SchedulerStopTimeout,
	}
}
