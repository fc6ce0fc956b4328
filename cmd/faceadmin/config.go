package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrCodeEU/faceadmin/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: fmt.Sprintf(`Show the configuration after defaults, the config file and FACEADMIN_*
environment overrides are applied.

Configuration locations:
  System: %s
  User:   ~/%s`, config.SystemConfigPath, config.UserConfigPath),
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		if shown.Server.APIKey != "" {
			shown.Server.APIKey = "********"
		}
		data, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("faceadmin v%s\n", Version)
		fmt.Println("Face recognition login for administrators")
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
