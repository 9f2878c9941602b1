package engine

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DumpDependencies writes the component and task dependency graphs of this
// root as a GraphViz DOT file named "<root-name>-<dotfile>". Root only.
func (c *Component) DumpDependencies() (string, error) {
	if !c.IsRoot() {
		return "", NewInternalError("dumpDependencies called on non-root component", nil)
	}

	dotName := c.Name + "-" + c.cluster.cfg.Dotfile
	out, err := os.Create(dotName)
	if err != nil {
		return "", fmt.Errorf("dependency dump: %w", err)
	}
	defer out.Close()

	c.log.Info().Str("file", dotName).Msg("dumping dependencies")
	c.writeDOT(out)
	return dotName, nil
}

// writeDOT renders the two subgraphs: component edges and task edges. Node
// labels use the cluster/Kind/name form, tasks with a .<task-name> suffix.
func (c *Component) writeDOT(w io.Writer) {
	var sb strings.Builder

	sb.WriteString("digraph {\n")

	sb.WriteString("   subgraph components {\n")
	sb.WriteString("      label=\"Components\";\n")
	c.ForAllComponents(func(comp *Component) {
		for _, dep := range comp.dependsOn {
			fmt.Fprintf(&sb, "      %q -> %q\n", comp.FQName(), dep.FQName())
		}
	})
	sb.WriteString("   }\n")

	if c.tasks != nil {
		sb.WriteString("   subgraph tasks {\n")
		sb.WriteString("      label=\"Tasks\";\n")
		for _, task := range c.tasks {
			for _, dep := range task.deps {
				fmt.Fprintf(&sb, "      %q -> %q\n",
					task.component.FQName()+"."+task.name,
					dep.component.FQName()+"."+dep.name)
			}
		}
		sb.WriteString("   }\n")
	}

	sb.WriteString("}\n")
	_, _ = io.WriteString(w, sb.String())
}
