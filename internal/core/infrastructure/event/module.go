// Package event 提供事件总线模块的依赖注入装配
package event

import (
	"go.uber.org/fx"

	"github.com/obelisk/v1/pkg/interfaces/infrastructure/event"
)

// Module 返回事件总线模块
func Module() fx.Option {
	return fx.Module("event",
		fx.Provide(func() event.EventBus {
			return New()
		}),
	)
}
