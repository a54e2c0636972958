package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string

	// Engine tunables. The defaults match the original behavior; the
	// env overrides exist for operators, not for the engine itself.
	QueuePollInterval time.Duration // durable-path poll precision
	AlarmTimeout      time.Duration // auto-dismiss after this long without user action
	DefaultSnooze     time.Duration // used when a reminder carries no snooze setting
	RestartBackoff    time.Duration // delay before the guard re-arms after a crash
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := &Config{
		DatabaseURI:   os.Getenv("DATABASE_URI"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
	}

	var err error
	if cfg.QueuePollInterval, err = getDuration("QUEUE_POLL_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.AlarmTimeout, err = getDuration("ALARM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.RestartBackoff, err = getDuration("RESTART_BACKOFF", 5*time.Second); err != nil {
		return nil, err
	}
	snoozeMin, err := getInt("DEFAULT_SNOOZE_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	if snoozeMin < 1 {
		snoozeMin = 1
	}
	cfg.DefaultSnooze = time.Duration(snoozeMin) * time.Minute

	return cfg, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
