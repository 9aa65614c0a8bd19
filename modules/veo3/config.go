package veo3

import (
	"time"

	"media-studio-server/modules/common/config"
)

// Config - video generation settings
type Config struct {
	Model          string
	NegativePrompt string
	PollInterval   time.Duration
	// Timeout bounds the whole poll loop; zero waits for as long as the caller's context allows.
	Timeout time.Duration
}

const defaultPollInterval = 10 * time.Second

// LoadConfig - video settings from the application config
func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Model:          cfg.VideoModel,
		NegativePrompt: cfg.VideoNegativePrompt,
		PollInterval:   cfg.VideoPollInterval,
		Timeout:        cfg.VideoPollTimeout,
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}
