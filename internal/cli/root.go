package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"packagedb/internal/app"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "PACKAGEDB"

type RootConfig struct {
	ConfigFile string
	LogLevel   string
	Snapshot   string
	MirrorDir  string
	HistoryDir string
}

func Execute() {
	root := newRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:     "packagedb",
		Short:   "Versioned package database for NuGet, NPM, Pip and Apt feeds",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			cmd.SetContext(log.Logger.WithContext(cmd.Context()))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	cmd.PersistentFlags().StringVar(&cfg.Snapshot, "snapshot", "packagedb.pkdb", "Package db snapshot path")
	cmd.PersistentFlags().StringVar(&cfg.MirrorDir, "mirror-dir", "", "Directory of the per-feed YAML mirror")
	cmd.PersistentFlags().StringVar(&cfg.HistoryDir, "history-dir", "", "Directory of recorded generations")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("snapshot", cmd.PersistentFlags().Lookup("snapshot"))
	_ = viper.BindPFlag("mirror_dir", cmd.PersistentFlags().Lookup("mirror-dir"))
	_ = viper.BindPFlag("history_dir", cmd.PersistentFlags().Lookup("history-dir"))

	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newQueryCommand())
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newTagCommand())
	cmd.AddCommand(newDiffCommand())
	cmd.AddCommand(newPruneCommand())
	cmd.AddCommand(newSBOMCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("packagedb")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/packagedb")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func newAppService() (app.Service, error) {
	return app.NewService()
}

func exitCodeForError(err error) int {
	code := errbuilder.CodeOf(err)
	message := errorMessage(err)
	switch code {
	case errbuilder.CodeInvalidArgument:
		if strings.HasPrefix(message, "invalid package db snapshot") {
			return 6
		}
		return 2
	case errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodeFailedPrecondition:
		if strings.HasPrefix(message, "missing dependency") {
			return 3
		}
		return 4
	case errbuilder.CodeNotFound:
		return 4
	case errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
