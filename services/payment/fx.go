package payment

import (
	"go.uber.org/fx"
)

var Module = fx.Module("payment.module",
	fx.Provide(NewProcessor),
)
