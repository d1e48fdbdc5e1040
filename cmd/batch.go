package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/gromoveveryday/essay-grader/internal/csvfile"
	"github.com/gromoveveryday/essay-grader/internal/evaluator"
	"github.com/gromoveveryday/essay-grader/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Send these essays for evaluation?",
	Items: []string{PromptYes, PromptNo},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate a CSV of essays without starting the HTTP service",
	Run: func(cmd *cobra.Command, _ []string) {
		batch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("input", "i", "", "CSV file with essays to evaluate")
	batchCmd.Flags().StringP("output", "o", "", "file for the JSON results (default is stdout)")
	batchCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before calling the model")

	batchCmd.MarkFlagRequired("input")
}

func batch(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	input := cmd.Flag("input").Value.String()

	essays, err := csvfile.Load(input)
	if err != nil {
		logger.Fatal("loading essays", zap.Error(err), zap.String("file", input))
	}

	logger.Info("loaded essays", zap.Int("count", len(essays)), zap.String("file", input))

	if len(essays) > config.Server.MaxBatchSize {
		logger.Fatal("too many essays in the file",
			zap.Int("count", len(essays)),
			zap.Int("max", config.Server.MaxBatchSize),
		)
	}

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the model backend", zap.Error(err))
	}

	eval := evaluator.New(generator, logger, config.AI.MaxLogLength)
	results := eval.EvaluateBatch(ctx, essays)

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		logger.Fatal("encoding results", zap.Error(err))
	}

	output := cmd.Flag("output").Value.String()
	if output == "" {
		os.Stdout.Write(append(data, '\n'))
		return
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		logger.Fatal("writing results", zap.Error(err), zap.String("file", output))
	}

	logger.Info("results written", zap.String("file", output), zap.Int("count", len(results)))
}
