package triage

import (
	"github.com/foxseedlab/suma/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Catalog, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RolePromptsPath == "" {
			return DefaultCatalog(), nil
		}
		return LoadCatalog(cfg.RolePromptsPath)
	})
}
