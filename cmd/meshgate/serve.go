package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"meshgate/internal/config"
	"meshgate/internal/pkg/logger"
	"meshgate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the meshgate server",
	Long:  `Start the meshgate HTTP server and begin accepting requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// 初始化全局 logger
		globalLogger, err := logger.New(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer globalLogger.Sync()

		gw, err := server.Build(cmd.Context(), cfg, globalLogger)
		if err != nil {
			globalLogger.Error("Failed to assemble gateway", zap.Error(err))
			return err
		}
		defer func() {
			if err := gw.Close(); err != nil {
				globalLogger.Warn("Failed to release gateway resources", zap.Error(err))
			}
		}()

		srv := server.NewHTTPServer(cfg.Addr(), gw.Dispatcher, gw.Metrics, globalLogger)
		srv.SetShutdownTimeout(cfg.Server.ShutdownTimeout)
		return srv.Start()
	},
}

func SetupServeCmd() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Server port")
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "Server host")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}
