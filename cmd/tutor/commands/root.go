package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ai-voice-tutor/internal/config"
	"ai-voice-tutor/internal/observability/logging"
)

var (
	// Global flags
	configFile string
	envFile    string
	logLevel   string
	native     string
	target     string
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Real-time voice language tutor",
	Long: `tutor - talk with Kai, an AI language tutor, over a live audio channel.

Configuration is read from (lowest to highest precedence):
  built-in defaults, a YAML file (--config or CONFIG_FILE),
  a .env file (--env-file), and the environment.

Examples:
  # Practise Spanish from English in this terminal
  tutor talk --native en-US --target es-ES

  # Run the service with the Gemini transport
  LIVE_TRANSPORT=gemini GEMINI_API_KEY=... tutor serve

  # Follow a running service and start its session
  tutor watch --addr localhost:8080 --start`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&native, "native", "", "native language code (e.g. en-US)")
	rootCmd.PersistentFlags().StringVar(&target, "target", "", "target language code (e.g. es-ES)")
}

// loadConfig resolves the configuration for a command. Flags win over
// everything else.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if native != "" {
		cfg.Tutor.NativeLanguage = native
	}
	if target != "" {
		cfg.Tutor.TargetLanguage = target
	}
	return cfg, nil
}

// initLogging configures the global logger. Interactive commands log to
// stderr in console format so stdout carries the transcript.
func initLogging(cfg *config.Config, interactive bool) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Observability.LogLevel
	lc.Format = cfg.Observability.LogFormat
	lc.TimeFormat = time.RFC3339
	if interactive {
		lc.Format = "console"
		lc.Output = os.Stderr
		if logLevel == "" && os.Getenv("LOG_LEVEL") == "" {
			lc.Level = "warn"
		}
	}
	logging.Init(lc)
}
