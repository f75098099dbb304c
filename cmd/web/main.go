package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"imposter/internal/config"
	"imposter/internal/logging"
	"imposter/internal/server"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	// a .env file is optional; real environment variables win over it
	envErr := godotenv.Load()
	if errors.Is(envErr, fs.ErrNotExist) {
		envErr = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Defaults()
	cobra.CheckErr(newCmd(&cfg, envErr).ExecuteContext(ctx))
}

// newCmd builds the root command. envErr is the result of loading .env,
// reported once the logger is configured.
func newCmd(cfg *config.Config, envErr error) *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:     "imposter",
		Short:   "Room server for the imposter word party game.",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.BindFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := logging.Setup(cfg.LogLevel, cfg.LogPretty); err != nil {
				return err
			}
			warnEnv(envErr)
			return server.Run(cmd.Context(), *cfg, releaseVersion)
		},
	}

	config.RegisterFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("imposter v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func warnEnv(err error) {
	if err != nil {
		log.Warn().Err(err).Msg("reading .env")
	}
}
