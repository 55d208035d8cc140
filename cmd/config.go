package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(_ *cobra.Command, _ []string) error {
		// Redact before rendering. The effective config may carry
		// adapter credentials from the environment.
		c := *cfg
		if c.Adapter.Password != "" {
			c.Adapter.Password = "********"
		}

		out, err := yaml.Marshal(&c)
		if err != nil {
			return eris.Wrap(err, "config: marshal")
		}
		fmt.Fprint(os.Stdout, string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
