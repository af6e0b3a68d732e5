// Package badger 提供BadgerDB存储模块的依赖注入装配
package badger

import (
	"context"

	"go.uber.org/fx"

	badgerconfig "github.com/obelisk/v1/internal/config/storage/badger"
	"github.com/obelisk/v1/pkg/interfaces/config"
	log "github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	interfaces "github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
)

// ModuleParams 定义存储模块的依赖参数
type ModuleParams struct {
	fx.In

	Provider config.Provider
	Logger   log.Logger
}

// Module 返回存储模块
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 提供存储服务并注册生命周期钩子
func ProvideServices(params ModuleParams, lc fx.Lifecycle) (interfaces.KVStore, error) {
	store, err := New(badgerconfig.NewFromOptions(params.Provider.GetBadger()), params.Logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}
