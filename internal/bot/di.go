package bot

import (
	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/discord"
	"github.com/foxseedlab/kaiwarank/internal/ranking"
	"github.com/foxseedlab/kaiwarank/internal/repository"
	"github.com/foxseedlab/kaiwarank/internal/scoring"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		tracker := do.MustInvoke[*scoring.Tracker](i)
		rankings := do.MustInvoke[*ranking.Service](i)
		return NewManager(cfg, repo, dc, tracker, rankings), nil
	})
}
