package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HubDub0522/InsiderTape/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat("config.yaml"); err == nil {
			return eris.New("config.yaml already exists, refusing to overwrite")
		}

		defaults, err := config.Default()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(defaults)
		if err != nil {
			return eris.Wrap(err, "config init: marshal")
		}

		if err := os.WriteFile("config.yaml", data, 0o644); err != nil {
			return eris.Wrap(err, "config init: write file")
		}

		fmt.Println("wrote config.yaml")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
