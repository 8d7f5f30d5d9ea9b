package commands

import (
	"github.com/spf13/cobra"

	"github.com/hashilab/labctl/cmd/labctl/handlers"
)

// Status returns the command that reports each component's state without
// changing anything.
func Status() *cobra.Command {
	var opts handlers.StatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which lab components are deployed",
		Long: `Show which lab components are deployed.

Each component's done signature is probed and reported. Nothing is changed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: labctl.yaml)")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: ~/.kube/config)")

	return cmd
}
