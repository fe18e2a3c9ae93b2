package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Env                   string
	DatabaseURL           string
	DiscordToken          string
	WebListenAddr         string
	WebBaseURL            string
	CloseNotifyWebhookURL string
	CountOtherBots        bool
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if !strings.Contains(c.WebListenAddr, ":") {
		return fmt.Errorf("WEB_LISTEN_ADDR must be a host:port or :port address, got %q", c.WebListenAddr)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "WEB_LISTEN_ADDR", value: c.WebListenAddr},
		{name: "WEB_BASE_URL", value: c.WebBaseURL},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
