package contract

import (
	"go.uber.org/fx"
)

var Module = fx.Module("contract.module",
	fx.Provide(NewService),
)
