package engine

// ResourceDriver is the per-kind capability set the engine dispatches on.
// Drivers build resource bodies, append tasks to the root task list and
// probe live cluster state; they never own orchestration decisions.
type ResourceDriver interface {
	// Kind returns the kind this driver handles.
	Kind() Kind

	// Prepare fills in the component's resource body and synthesizes any
	// implicit children (a Deployment's Service, its ConfigMap). Called
	// once per component before tasks are built.
	Prepare(c *Component) error

	// AddDeploymentTasks appends the component's deploy tasks to the
	// root task list.
	AddDeploymentTasks(c *Component) error

	// AddRemovementTasks appends the component's teardown tasks to the
	// root task list.
	AddRemovementTasks(c *Component) error

	// Probe inspects the live object and reports its state through fn.
	// The callback must be delivered on the cluster executor. Returns
	// false when the driver does not support probing; no further polls
	// are scheduled in that case.
	Probe(c *Component, fn func(ObjectState)) bool

	// Validate runs kind-specific checks on the initialized component.
	Validate(c *Component) error
}

// DriverRegistry maps each kind to its driver. The registry is built by the
// drivers package and passed into the engine explicitly.
type DriverRegistry map[Kind]ResourceDriver

// Driver looks up the driver for a kind.
func (r DriverRegistry) Driver(kind Kind) (ResourceDriver, bool) {
	d, ok := r[kind]
	return d, ok
}
