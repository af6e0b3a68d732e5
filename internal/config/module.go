// Package config 提供配置模块的依赖注入装配
package config

import (
	"go.uber.org/fx"

	"github.com/obelisk/v1/pkg/interfaces/config"
)

// Module 返回配置模块
//
// appConfig 为空时全部使用默认配置。
func Module(appConfig *AppConfig) fx.Option {
	return fx.Module("config",
		fx.Provide(func() config.Provider {
			return NewProvider(appConfig)
		}),
	)
}
