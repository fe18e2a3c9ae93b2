package httpapi

import (
	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/observability"
	"github.com/foxseedlab/kaiwarank/internal/ranking"
	"github.com/foxseedlab/kaiwarank/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rankings := do.MustInvoke[*ranking.Service](i)
		repo := do.MustInvoke[repository.Repository](i)
		metrics := do.MustInvoke[*observability.Metrics](i)
		return New(cfg, rankings, repo, metrics), nil
	})
}
