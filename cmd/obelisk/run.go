package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/obelisk/v1/internal/config"
	badgerconfig "github.com/obelisk/v1/internal/config/storage/badger"
	chainstate "github.com/obelisk/v1/internal/core/chain/state"
	eventmodule "github.com/obelisk/v1/internal/core/infrastructure/event"
	logmodule "github.com/obelisk/v1/internal/core/infrastructure/log"
	badgermodule "github.com/obelisk/v1/internal/core/infrastructure/storage/badger"
	devledger "github.com/obelisk/v1/internal/core/ledger/dev"
	chainIface "github.com/obelisk/v1/pkg/interfaces/chain"
	logIface "github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
)

func newRunCommand() *cobra.Command {
	var configPath string
	var dataDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "启动链状态核心",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appConfig, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			if dataDir != "" {
				if appConfig.Badger == nil {
					appConfig.Badger = &badgerconfig.BadgerOptions{}
				}
				appConfig.Badger.Path = dataDir
			}

			app := fx.New(
				config.Module(appConfig),
				logmodule.Module(),
				badgermodule.Module(),
				eventmodule.Module(),
				devledger.Module(),
				chainstate.Module(),
				fx.Invoke(func(_ chainIface.ChainState, logger logIface.Logger) {
					logger.Info("链状态核心已就绪")
				}),
			)

			app.Run()
			return app.Err()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径（JSON）")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "数据目录（覆盖配置中的存储路径）")
	return cmd
}

// loadAppConfig 读取 JSON 配置文件，路径为空时返回默认配置
func loadAppConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	appConfig := &config.AppConfig{}
	if err := json.Unmarshal(data, appConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return appConfig, nil
}
