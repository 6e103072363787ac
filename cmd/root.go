package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"zm/internal/config"
	"zm/internal/logging"
)

var (
	cfgFile string
	profile string
	verbose bool
	cfg     *config.Config
	logger  = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "zm",
	Short:         "z/OS Mainframe CLI tool",
	Long:          `zm is a simple CLI tool for working with z/OS mainframes over z/OSMF or FTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "setup" {
			setupLogging("")
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			// ZM_* variables alone are enough to run without a file.
			if !errors.Is(err, config.ErrNotFound) {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if _, ok := config.ApplyEnv(nil); !ok {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = &config.Config{}
		}

		if profile != "" {
			cfg.DefaultProfile = profile
		}

		level := ""
		if p, err := cfg.GetProfile(cfg.DefaultProfile); err == nil {
			level = p.LogLevel
		}
		setupLogging(level)
		return nil
	},
}

func setupLogging(level string) {
	if verbose {
		level = "debug"
	}
	if env := os.Getenv(config.EnvPrefix + "_LOG_LEVEL"); env != "" && !verbose {
		level = env
	}
	logging.Setup(logging.Config{Level: level, Pretty: true})
	logger = logging.NewLogger("cli")
}

// Execute runs the root command. Ctrl-C cancels the command context, which
// stops polls and transfers without touching remote jobs.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.zmconfig)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile to use (overrides default)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests to stderr")
}

func GetConfig() *config.Config {
	return cfg
}

// GetCurrentProfile returns the selected profile with ZM_* overrides
// applied. It fails if the result is not usable.
func GetCurrentProfile() (*config.Profile, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	var base *config.Profile
	if len(cfg.Profiles) > 0 || cfg.DefaultProfile != "" {
		p, err := cfg.GetProfile(cfg.DefaultProfile)
		if err != nil {
			return nil, err
		}
		cp := *p
		base = &cp
	}

	p, _ := config.ApplyEnv(base)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}
