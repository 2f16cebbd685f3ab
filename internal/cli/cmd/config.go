package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Display the config file path and the settings in effect after environment and flag overrides.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("app not initialized")
		}
		renderer := styles.NewConfigRenderer(app.Theme)
		fmt.Fprint(cmd.OutOrStdout(), renderer.RenderConfigInfo(app.Manager.ConfigFile(), app.Config))
		return nil
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Write config.schema.json next to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("app not initialized")
		}
		renderer := styles.NewConfigRenderer(app.Theme)

		dir := filepath.Dir(app.Manager.ConfigFile())
		if app.Manager.ConfigFile() == "" {
			var err error
			if dir, err = config.GetConfigDir(); err != nil {
				fmt.Fprint(cmd.OutOrStdout(), renderer.RenderError(err))
				return nil
			}
		}

		path, err := config.WriteSchemaFile(dir)
		if err != nil {
			fmt.Fprint(cmd.OutOrStdout(), renderer.RenderError(err))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), renderer.RenderSchemaWritten(path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSchemaCmd)
}
