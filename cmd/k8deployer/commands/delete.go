package commands

import (
	"github.com/spf13/cobra"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
)

func newDeleteCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <definition-file>",
		Short: "Tear down a deployed component tree",
		Long: `Delete the resources of the component tree from every configured
cluster, in the exact reverse of the deployment order: workloads go
before the namespaces and prerequisites they depend on. Deleting an
already-absent resource is treated as success.`,
		Example: `  # Tear down from one cluster
  k8deployer delete app.yaml -k ~/.kube/prod.conf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), flags, config.ModeDelete, args[0])
		},
	}
	return cmd
}
