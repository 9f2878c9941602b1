package commands

import (
	"github.com/spf13/cobra"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
)

func newDepgraphCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depgraph <definition-file>",
		Short: "Write the dependency graphs as GraphViz DOT files",
		Long: `Build the component tree and its task graph exactly as deploy would,
then write one DOT file per root ("<root-name>-<dotfile>") with two
subgraphs: component dependencies and task dependencies. No request is
sent to any cluster.`,
		Example: `  k8deployer depgraph app.yaml -k prod.conf
  dot -Tsvg web-dependencies.dot -o web-deps.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), flags, config.ModeShowDependencies, args[0])
		},
	}
	return cmd
}
