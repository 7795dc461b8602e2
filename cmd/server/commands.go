package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/cardroom-server/internal/app"
	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/config"
	applog "github.com/vovakirdan/cardroom-server/internal/log"
	"github.com/vovakirdan/cardroom-server/internal/store"
	"github.com/vovakirdan/cardroom-server/internal/store/sqlite"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	configPath string
	overrides  config.Config
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "cardroomd",
		Short:         "Multiplayer card room server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&flags.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.overrides.DatabasePath, "db", "", "SQLite database path")

	serve := newServeCommand(flags)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, newUserCommand(flags), newVersionCommand())
	return root
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	bootLogger := applog.New("info", "")
	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(flags.overrides)
	bootLogger.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := applog.New(cfg.LogLevel, cfg.LogFile)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("version", version).Str("addr", cfg.Addr).Msg("starting cardroom server")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&flags.overrides.NATSURL, "nats-url", "", "NATS URL for the inter-server link")
	cmd.Flags().IntVar(&flags.overrides.Server.ID, "server-id", 0, "id of this server in the network")
	cmd.Flags().DurationVar(&flags.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	return cmd
}

func newUserCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var (
		password  string
		moderator bool
		admin     bool
		judge     bool
	)
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Register an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			var level store.UserLevel
			if moderator {
				level |= store.LevelModerator
			}
			if admin {
				level |= store.LevelAdmin
			}
			if judge {
				level |= store.LevelJudge
			}

			user, err := auth.NewService(st, app.JWTConfig(&cfg)).Register(cmd.Context(), args[0], password, level)
			if err != nil {
				return fmt.Errorf("register %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (level %d)\n", user.Name, user.Level)
			return nil
		},
	}
	add.Flags().StringVarP(&password, "password", "p", "", "account password")
	add.Flags().BoolVar(&moderator, "moderator", false, "grant moderator rights")
	add.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	add.Flags().BoolVar(&judge, "judge", false, "grant judge rights")

	cmd.AddCommand(add)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
