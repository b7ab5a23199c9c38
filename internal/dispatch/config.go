package dispatch

import "time"

// Config holds dispatcher configuration.
type Config struct {
	// Schedule is a standard five-field cron expression for the daily run.
	Schedule string `mapstructure:"schedule"`
	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string `mapstructure:"timezone"`
	// BatchSize caps how many due records one run selects.
	BatchSize int `mapstructure:"batch_size"`
	// Concurrency bounds how many sends run at once within a batch.
	Concurrency int `mapstructure:"concurrency"`
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	// LockKey and LockTTL configure the Redis run lock.
	LockKey string        `mapstructure:"lock_key"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// Default dispatcher settings.
const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 10
	DefaultSendTimeout = 30 * time.Second
	DefaultSchedule    = "0 9 * * *"
	DefaultLockKey     = "scheduled-mailer:dispatch-lock"
	DefaultLockTTL     = 15 * time.Minute
)

// DefaultConfig returns a Config with the default batch cap and timeouts.
func DefaultConfig() Config {
	return Config{
		Schedule:    DefaultSchedule,
		Timezone:    "UTC",
		BatchSize:   DefaultBatchSize,
		Concurrency: DefaultConcurrency,
		SendTimeout: DefaultSendTimeout,
		LockKey:     DefaultLockKey,
		LockTTL:     DefaultLockTTL,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Schedule == "" {
		c.Schedule = d.Schedule
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.LockKey == "" {
		c.LockKey = d.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	return c
}
