package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/N9work/CrewAi-Project/config"
	"github.com/N9work/CrewAi-Project/internal/catalog"
)

func catalogCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Validate the template catalogue and list accepted ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			reg, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(reg.Options())
		},
	}
}
