// internal/cli/root.go
package ragbot

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwiater/ragbot/internal/appconfig"
	"github.com/mwiater/ragbot/internal/logging"
)

const quietLogAnnotation = "quietLog"

var (
	cfgFile       string
	envFile       string
	debugFlag     bool
	configLoaded  bool
	currentConfig *appconfig.Config
)

var rootCmd = &cobra.Command{
	Use:           "ragbot",
	Short:         "ragbot answers questions about a document using retrieval-augmented generation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		currentConfig = &cfg

		if _, ok := cmd.Annotations[quietLogAnnotation]; ok {
			logging.SetQuiet(true)
		}
		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if cfg.Debug {
			logging.LogEvent("Debug logging enabled (config: %s)", configSource())
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
}

// Execute runs the root command and reports any error on stderr.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		_ = logging.Close()
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", appconfig.DefaultEnvFile, "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// loadConfig merges defaults, the env file, the environment, the config file
// and flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (appconfig.Config, error) {
	if err := appconfig.LoadEnvFile(envFile); err != nil {
		return appconfig.Config{}, err
	}
	cfg, err := appconfig.Load(cfgFile)
	if err != nil {
		return appconfig.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	configLoaded = cfg.ConfigPath != ""
	if flag := cmd.Flags().Lookup("debug"); flag != nil && flag.Changed {
		cfg.Debug = debugFlag
	}
	return cfg, nil
}

func configSource() string {
	if !configLoaded {
		return "defaults and environment"
	}
	return cfgFile
}

// getConfig returns the configuration loaded for the running command.
func getConfig() appconfig.Config {
	if currentConfig == nil {
		return appconfig.Defaults()
	}
	return *currentConfig
}
