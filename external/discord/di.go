package discord

import (
	"github.com/foxseedlab/kaiwarank/internal/config"
	discordpkg "github.com/foxseedlab/kaiwarank/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (discordpkg.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(c.DiscordToken), nil
	})
}
