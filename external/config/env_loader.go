package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kaiwarank/internal/config"
)

type envConfig struct {
	Env                   string `env:"ENV" envDefault:"production"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	DiscordToken          string `env:"DISCORD_TOKEN,required"`
	WebListenAddr         string `env:"WEB_LISTEN_ADDR" envDefault:":10000"`
	WebBaseURL            string `env:"WEB_BASE_URL" envDefault:"http://localhost:10000"`
	CloseNotifyWebhookURL string `env:"CLOSE_NOTIFY_WEBHOOK_URL"`
	CountOtherBots        bool   `env:"DISCORD_COUNT_OTHER_BOTS" envDefault:"false"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                   raw.Env,
		DatabaseURL:           raw.DatabaseURL,
		DiscordToken:          raw.DiscordToken,
		WebListenAddr:         raw.WebListenAddr,
		WebBaseURL:            raw.WebBaseURL,
		CloseNotifyWebhookURL: raw.CloseNotifyWebhookURL,
		CountOtherBots:        raw.CountOtherBots,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
