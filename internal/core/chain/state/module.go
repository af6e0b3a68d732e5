// Package state 提供链状态模块的依赖注入装配
package state

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	chainconfig "github.com/obelisk/v1/internal/config/chain"
	chainIface "github.com/obelisk/v1/pkg/interfaces/chain"
	configIface "github.com/obelisk/v1/pkg/interfaces/config"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/event"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/writegate"
	"github.com/obelisk/v1/pkg/interfaces/ledger"
)

// ModuleParams 定义链状态模块的依赖参数
type ModuleParams struct {
	fx.In

	Provider  configIface.Provider
	KV        storage.KVStore
	Validator ledger.BlockValidator
	Ledger    ledger.Ledger
	Bus       event.EventBus
	Logger    log.Logger

	// Registry 可选：未提供时使用默认注册表
	Registry prometheus.Registerer `optional:"true"`
}

// Module 返回链状态模块
func Module() fx.Option {
	return fx.Module("chain",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 提供链状态服务并注册生命周期钩子
//
// OnStart：创世落库/状态恢复后启动维护循环；
// OnStop：停止维护循环。
func ProvideServices(params ModuleParams, lc fx.Lifecycle) (chainIface.ChainState, error) {
	registry := params.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	state, err := NewState(Deps{
		Config:    chainconfig.New(params.Provider.GetChain()),
		KV:        params.KV,
		Validator: params.Validator,
		Ledger:    params.Ledger,
		Gate:      writegate.Default(),
		Bus:       params.Bus,
		Registry:  registry,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := state.Bootstrap(ctx); err != nil {
				return err
			}
			go state.RunMaintenance(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			state.StopMaintenance()
			return state.Close()
		},
	})

	return state, nil
}
