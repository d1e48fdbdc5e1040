package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gromoveveryday/essay-grader/internal/evaluator"
	"github.com/gromoveveryday/essay-grader/internal/logger"
	"github.com/gromoveveryday/essay-grader/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the essay evaluation HTTP service",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the essay-grader", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the model backend", zap.Error(err))
	}

	eval := evaluator.New(generator, logger, config.AI.MaxLogLength)

	srv, err := server.New(server.Config{
		Address:        config.Server.Address,
		DataDir:        config.Server.DataDir,
		MaxBatchSize:   config.Server.MaxBatchSize,
		RequestTimeout: time.Duration(config.Server.RequestTimeoutSeconds) * time.Second,
		Version:        version,
	}, eval, logger)
	if err != nil {
		logger.Fatal("building the http server", zap.Error(err))
	}

	if err := srv.Run(); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}
