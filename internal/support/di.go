package support

import (
	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/model"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		return NewService(
			do.MustInvoke[model.ChatModel](i),
			do.MustInvoke[*metrics.Metrics](i),
		), nil
	})
}
