package drivers

import (
	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
)

// appDriver is the grouping node: no resource body, no tasks. An App
// completes when all its children do.
type appDriver struct{}

func (d *appDriver) Kind() engine.Kind { return engine.KindApp }

func (d *appDriver) Prepare(c *engine.Component) error { return nil }

func (d *appDriver) AddDeploymentTasks(c *engine.Component) error { return nil }

func (d *appDriver) AddRemovementTasks(c *engine.Component) error { return nil }

func (d *appDriver) Probe(c *engine.Component, fn func(engine.ObjectState)) bool {
	return false
}

func (d *appDriver) Validate(c *engine.Component) error {
	if c.Parent() != nil && c.Parent().Kind != engine.KindApp {
		return engine.NewConfigError("an App can only nest under another App", nil).
			WithComponent(c.FQName())
	}
	return nil
}
