// internal/cli/config.go
package ragbot

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwiater/ragbot/internal/appconfig"
)

var (
	showConfigRaw bool
	initForce     bool
)

// configCmd groups configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Group commands for inspecting and creating configuration",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show config settings",
	Long:  `Show config settings after defaults, the env file, the environment and the config file have been merged. Secrets are masked.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		if showConfigRaw {
			appconfig.DumpConfig(cmd.OutOrStdout(), cfg)
			return
		}
		file := ""
		if configLoaded {
			file = cfgFile
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), file, cfg)
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the current settings to a YAML config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appconfig.DefaultConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		cfg := getConfig()
		// Keys stay in the environment.
		cfg.RAGAPIKey, cfg.EmbeddingAPIKey = "", ""
		if err := appconfig.Save(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	showConfigCmd.Flags().BoolVar(&showConfigRaw, "raw", false, "pretty-print the full configuration struct")
	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(showConfigCmd, initConfigCmd)
	rootCmd.AddCommand(configCmd)
}
