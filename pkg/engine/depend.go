package engine

import (
	"fmt"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
)

// AddDependency records that this component depends on target. Self-edges
// and edges that would close a cycle are rejected as fatal configuration
// errors; duplicates are ignored.
func (c *Component) AddDependency(target *Component) error {
	if target == c {
		return NewCycleError("component cannot depend on itself", nil).WithComponent(c.FQName())
	}

	closure := map[*Component]bool{}
	target.addDependenciesRecursively(closure)
	if closure[c] {
		return NewCycleError(
			fmt.Sprintf("circular dependency with %s", target.FQName()), nil).
			WithComponent(c.FQName())
	}

	for _, dep := range c.dependsOn {
		if dep == target {
			return nil
		}
	}

	c.log.Debug().Str("depends_on", target.FQName()).Msg("component dependency")
	c.dependsOn = append(c.dependsOn, target)
	return nil
}

func (c *Component) addDependenciesRecursively(out map[*Component]bool) {
	for _, dep := range c.dependsOn {
		if !out[dep] {
			out[dep] = true
			dep.addDependenciesRecursively(out)
		}
	}
}

// ScanDependencies assembles the component-level dependency edges over the
// whole tree: namespace edges first, then the declared depends lists. Under
// remove mode every edge is inserted reversed so teardown runs in the exact
// reverse of the build order. Root only.
func (c *Component) ScanDependencies() error {
	if !c.IsRoot() {
		return NewInternalError("scanDependencies called on non-root component", nil)
	}

	reverse := c.cluster.cfg.Mode == config.ModeDelete

	// Collect the namespace components, keyed by the namespace they
	// manage; every occupant of a collected namespace depends on it.
	nsComponents := map[string]*Component{}
	c.ForAllComponents(func(comp *Component) {
		if comp.Kind == KindNamespace {
			nsComponents[comp.NamespaceObjectName()] = comp
		}
	})

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(nsComponents) > 0 {
		c.ForAllComponents(func(comp *Component) {
			if comp.Kind == KindNamespace {
				return
			}
			ns := comp.GetNamespace()
			if ns == "" {
				return
			}
			if nsComp, ok := nsComponents[ns]; ok {
				if reverse {
					// An ancestor already waits for the namespace as a
					// descendant; the reversed edge would deadlock.
					for p := nsComp.parent; p != nil; p = p.parent {
						if p == comp {
							return
						}
					}
					record(nsComp.AddDependency(comp))
				} else {
					record(comp.AddDependency(nsComp))
				}
			}
		})
	}

	c.ForAllComponents(func(comp *Component) {
		for _, depName := range comp.Depends {
			c.ForAllComponents(func(candidate *Component) {
				if candidate.Name != depName || candidate == comp {
					return
				}
				if reverse {
					record(candidate.AddDependency(comp))
				} else {
					record(comp.AddDependency(candidate))
				}
			})
		}
	})

	return firstErr
}

// prepareTasks wires task-level edges from each component's parent relation
// and verifies the task graph is acyclic. When reverse is set BEFORE and
// AFTER swap. Under delete mode the relation edges are suppressed entirely:
// the reversed component-level edges already encode teardown order.
func (c *Component) prepareTasks(reverse bool) error {
	isDelete := c.cluster.cfg.Mode == config.ModeDelete

	if !isDelete {
		for _, task := range c.tasks {
			relation := task.component.Relation
			if reverse {
				switch relation {
				case RelationAfter:
					relation = RelationBefore
				case RelationBefore:
					relation = RelationAfter
				}
			}

			parent := task.component.parent
			if parent == nil {
				continue
			}

			switch relation {
			case RelationAfter:
				// The task waits for every parent task.
				for _, ptask := range c.tasks {
					if ptask.component == parent {
						task.AddDependency(ptask)
					}
				}
			case RelationBefore:
				// Every parent task waits for this task.
				for _, ptask := range c.tasks {
					if ptask.component == parent {
						ptask.AddDependency(task)
					}
				}
			case RelationIndependent:
				// No edges.
			}
		}
	}

	for _, task := range c.tasks {
		closure := map[*Task]bool{}
		task.addAllDependencies(closure)
		if closure[task] {
			return NewCycleError(
				fmt.Sprintf("circular task dependency involving %s.%s",
					task.component.FQName(), task.name), nil)
		}
	}

	return nil
}
