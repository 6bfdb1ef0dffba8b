// Command flashctl scores startups from the command line.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/flash/internal/config"
	"github.com/ZanzyTHEbar/flash/internal/engine"
	"github.com/ZanzyTHEbar/flash/internal/monitoring"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the global flags shared by every subcommand.
type cli struct {
	configPath string
	modelsDir  string
	logLevel   string
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stderr: stderr}

	root := &cobra.Command{
		Use:           "flashctl",
		Short:         "Predict startup success with the FLASH engine",
		Long:          `flashctl normalizes startup metrics, scores the CAMP pillars, runs the model ensemble and maps the result to an investment verdict.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("FLASH_CONFIG"), "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&c.modelsDir, "models-dir", "", "override the model artifact directory")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	root.AddCommand(
		c.newPredictCmd(),
		c.newCAMPCmd(),
		c.newNormalizeCmd(),
		c.newFeaturesCmd(),
		c.newBatchCmd(),
		c.newConfigCmd(),
	)
	return root
}

// loadConfig applies the command-line overrides on top of the file and
// environment configuration.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.modelsDir != "" {
		cfg.Models.Dir = c.modelsDir
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	return cfg, nil
}

// logger writes to stderr so stdout carries only command output.
func (c *cli) logger(cfg *config.Config) *slog.Logger {
	return monitoring.NewLogger(cfg.LogLevel(), cfg.Logging.Format, c.stderr).Logger
}

func (c *cli) loadEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(cfg, c.logger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}
