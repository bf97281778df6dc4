package atrium

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium/api/pkg/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", cfg.App.Name, cfg.App.Version)
			return nil
		},
	}
}
