// Command neuralhire ranks job postings for free-text queries and maintains
// the job corpus behind them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/config"
	"github.com/nursmen/neuralhire/internal/logger"
)

const app = "neuralhire"

var rootCmd = &cobra.Command{
	Use:           app,
	Short:         "neuralhire matches job postings to free-text queries",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("env-file", "", "a .env file to load (default is .env in current directory)")

	for _, name := range []string{"debug", "json", "env-file"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix(app)
	viper.AutomaticEnv()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger for a command.
func setup() (*config.Config, *zap.Logger, error) {
	var files []string
	if f := viper.GetString("env-file"); f != "" {
		files = append(files, f)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	env, level := cfg.Environment, cfg.LogLevel
	if viper.GetBool("json") {
		env = "prod"
	}
	if viper.GetBool("debug") {
		level = "debug"
	}
	log, err := logger.New(env, level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
