package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCommand prints the effective configuration, or writes it to a file
func ConfigCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if out != "" {
				return cfg.Save(out)
			}
			bs, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(bs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the configuration to this file instead of stdout")
	return cmd
}
