package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gromoveveryday/essay-grader/internal/ai"
	"github.com/gromoveveryday/essay-grader/internal/ai/gemini"
	"github.com/gromoveveryday/essay-grader/internal/ai/gigachat"
	"github.com/gromoveveryday/essay-grader/internal/logger"
	"github.com/gromoveveryday/essay-grader/internal/secrets"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app = "essay-grader"

	defaultMaxBatchSize   = 100
	defaultRequestTimeout = 180
	defaultMaxLogLength   = 200
)

type Config struct {
	Server *ServerConfig `mapstructure:"server"`
	AI     *AIConfig     `mapstructure:"ai"`
}

type ServerConfig struct {
	Address               string `mapstructure:"address"`
	DataDir               string `mapstructure:"data-dir"`
	MaxBatchSize          int    `mapstructure:"max-batch-size"`
	RequestTimeoutSeconds int    `mapstructure:"request-timeout-seconds"`
}

type AIConfig struct {
	Provider     string          `mapstructure:"provider"`
	MaxLogLength int             `mapstructure:"max-log-length"`
	GigaChat     *GigaChatConfig `mapstructure:"gigachat"`
	Gemini       *GeminiConfig   `mapstructure:"gemini"`
}

type GigaChatConfig struct {
	CredentialsFile    string  `mapstructure:"credentials-file"`
	Scope              string  `mapstructure:"scope"`
	Model              string  `mapstructure:"model"`
	Temperature        float32 `mapstructure:"temperature"`
	MaxRetries         int     `mapstructure:"max-retries"`
	InsecureSkipVerify bool    `mapstructure:"insecure-skip-verify"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "essay-grader scores OGE essays against the H1-H4 criteria using an LLM backend",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gigachat.credentials-file", "GIGACHAT_CREDENTIALS_FILE"); err != nil {
		log.Fatalf("binding GIGACHAT_CREDENTIALS_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is essay-grader.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for serve and batch. Version works without one.
	if serveCmd.CalledAs() == "" && batchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	applyDefaults(config)

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8000"
	}
	if config.Server.DataDir == "" {
		config.Server.DataDir = "./data"
	}
	if config.Server.MaxBatchSize <= 0 {
		config.Server.MaxBatchSize = defaultMaxBatchSize
	}
	if config.Server.RequestTimeoutSeconds <= 0 {
		config.Server.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if config.AI.MaxLogLength <= 0 {
		config.AI.MaxLogLength = defaultMaxLogLength
	}
}

// newGenerator builds the model backend selected by ai.provider. GigaChat is
// the default since the scoring rubric was tuned against it.
func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", "gigachat":
		return newGigaChatGenerator(cfg.GigaChat, log)
	case "gemini":
		return newGeminiGenerator(ctx, cfg.Gemini, log)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func newGigaChatGenerator(cfg *GigaChatConfig, log *zap.Logger) (ai.Generator, error) {
	if cfg == nil {
		cfg = &GigaChatConfig{}
	}

	credentials, err := secrets.Load(secrets.Source{
		Name: "gigachat credentials",
		File: cfg.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gigachat.credentials-file or GIGACHAT_CREDENTIALS_FILE)", err)
	}

	genLogger := logger.WithCommonFields(log, "gigachat", cfg.Model).
		With(zap.Int("ai_retry_attempts", cfg.MaxRetries))

	return gigachat.New(gigachat.Config{
		Credentials:        credentials,
		Scope:              cfg.Scope,
		Model:              cfg.Model,
		Temperature:        cfg.Temperature,
		MaxRetries:         cfg.MaxRetries,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, genLogger)
}

func newGeminiGenerator(ctx context.Context, cfg *GeminiConfig, log *zap.Logger) (ai.Generator, error) {
	if cfg == nil {
		cfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithCommonFields(log, "gemini", cfg.Model).
		With(zap.Int("ai_retry_attempts", cfg.MaxRetries))

	return gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, genLogger)
}
