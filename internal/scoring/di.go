package scoring

import (
	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/notify"
	"github.com/foxseedlab/kaiwarank/internal/observability"
	"github.com/foxseedlab/kaiwarank/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Tracker, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		notifier := do.MustInvoke[notify.Sender](i)
		metrics := do.MustInvoke[*observability.Metrics](i)
		return NewTracker(cfg, repo, notifier, metrics), nil
	})
}
