// Package cli provides the pricealert command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pricealert/internal/infrastructure/config"
	"pricealert/internal/infrastructure/logger"
)

const Version = "0.1.0"

// App holds state shared by subcommands once the root pre-run has loaded config.
type App struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string

	Config    *config.Config
	logCloser io.Closer
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "pricealert",
		Short: "Crypto price alert tracker",
		Long: `pricealert keeps one live market-data stream per instrument that has
active alerts and flips alerts to triggered when a tick crosses their threshold.

Run everything in one process with 'pricealert serve', or split ingestion and
evaluation with 'pricealert feed' and 'pricealert evaluate' over redis or kafka.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "configs/config.toml", "path to config.toml")
	rootCmd.PersistentFlags().StringVar(&app.EnvFile, "env", ".env", "env file loaded before config")
	rootCmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "override app.log_level")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newFeedCmd(app))
	rootCmd.AddCommand(newEvaluateCmd(app))
	rootCmd.AddCommand(newAlertsCmd(app))
	return rootCmd
}

// Execute runs the root command with a signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *App) load() error {
	config.LoadDotEnv(a.EnvFile)
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	if a.LogLevel != "" {
		cfg.App.LogLevel = a.LogLevel
	}
	a.Config = cfg
	a.logCloser = logger.Setup(logger.Options{Level: cfg.App.LogLevel, File: cfg.App.LogFile})
	return nil
}

func (a *App) close() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// 不需要加载配置
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pricealert v%s\n", Version)
		},
	}
}
