// Package dev 提供开发模式协作者的依赖注入装配
package dev

import (
	"go.uber.org/fx"

	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/interfaces/ledger"
)

// Module 返回开发模式账本与验证器模块
func Module() fx.Option {
	return fx.Module("ledger-dev",
		fx.Provide(
			func(kv storage.KVStore, logger log.Logger) ledger.Ledger {
				return NewLedger(kv, logger)
			},
			func() ledger.BlockValidator {
				return NewValidator()
			},
		),
	)
}
