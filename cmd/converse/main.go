package main

import (
	"io"
	"os"

	"github.com/go-go-golems/converse/cmd/converse/cmds"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "converse",
	Short: "converse talks to Gemini, Cohere, Claude and OpenAI and keeps the conversations",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// flags are only parsed now, so the logger is set up again
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		return initLogger()
	},
	SilenceUsage: true,
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initLogger() error {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}

	return InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
}

func InitLogger(config *logConfig) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if config.WithCaller {
		logger = logger.With().Caller().Logger()
	}

	var logWriter io.Writer
	if config.LogFormat == "json" {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	log.Logger = logger.Output(logWriter)

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Also log to this file, rotated (default: stderr only)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/converse/config.toml)")
	rootCmd.PersistentFlags().Bool("allow-local", false, "Allow http and local network provider endpoints")

	// quiet until flags are parsed
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	rootCmd.AddCommand(
		cmds.NewAskCommand(),
		cmds.NewChatCommand(),
		cmds.NewProvidersCommand(),
		cmds.NewSessionsCommand(),
		cmds.NewRenderCommand(),
	)
}
