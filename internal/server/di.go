package server

import (
	"github.com/foxseedlab/suma/internal/config"
	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/session"
	"github.com/foxseedlab/suma/internal/support"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		return New(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*triage.Catalog](i),
			do.MustInvoke[*session.Manager](i),
			do.MustInvoke[*support.Service](i),
			do.MustInvoke[*metrics.Metrics](i),
		), nil
	})
}
