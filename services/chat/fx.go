package chat

import (
	"go.uber.org/fx"
)

var Module = fx.Module("chat.module",
	fx.Provide(NewService),
)
