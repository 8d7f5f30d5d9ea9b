package commands

import (
	"github.com/spf13/cobra"

	"github.com/hashilab/labctl/cmd/labctl/handlers"
)

// Deploy returns the command that brings the lab to its desired state.
//
// Optional flags:
//
//	--config, -c:   Path to lab configuration YAML file (default: labctl.yaml if present)
//	--kubeconfig:   Path to the kubeconfig for the target cluster
//	--skip:         Component names to exclude from this run (repeatable)
//	--max-parallel: Concurrent component cap within a dependency layer
func Deploy() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the lab components in dependency order",
		Long: `Deploy the lab components in dependency order.

Components that are already in their desired state are detected and skipped,
so re-running deploy against a healthy lab changes nothing.

Examples:
  # Deploy everything using labctl.yaml in the current directory
  labctl deploy

  # Deploy against a specific cluster, leaving the sandbox out
  labctl deploy --kubeconfig ~/.kube/lab --skip sandbox

  # Serialize component deployment
  labctl deploy --max-parallel 1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: labctl.yaml)")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: ~/.kube/config)")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "Component names to exclude")
	cmd.Flags().IntVar(&opts.MaxParallel, "max-parallel", 0, "Concurrent component cap (default: from config)")

	return cmd
}

// Resume returns the command that continues an interrupted run. It is deploy
// under a name that states the intent: already-satisfied components are
// skipped and only the remainder is deployed.
func Resume() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted deployment",
		Long: `Resume an interrupted deployment.

Each component's done signature is probed first; whatever already holds is
skipped and only the missing pieces are deployed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: labctl.yaml)")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: ~/.kube/config)")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "Component names to exclude")
	cmd.Flags().IntVar(&opts.MaxParallel, "max-parallel", 0, "Concurrent component cap (default: from config)")

	return cmd
}
