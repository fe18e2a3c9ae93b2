package notify

import (
	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/notify"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notify.Sender, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPSender(c.CloseNotifyWebhookURL), nil
	})
}
