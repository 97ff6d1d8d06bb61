package creator

import (
	"go.uber.org/fx"
)

var Module = fx.Module("creator.module",
	fx.Provide(NewService),
)
