package config

// ComponentDefinition is one node of the user's declarative component tree.
// Definitions are immutable input; the engine builds runtime components from
// them after per-cluster variable expansion.
type ComponentDefinition struct {
	// Name identifies the component and, for most kinds, becomes the
	// Kubernetes object name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Kind selects the resource driver (App, Deployment, Service, ...).
	Kind string `json:"kind" yaml:"kind" validate:"required"`

	// Labels are applied to the generated Kubernetes objects.
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Args configure this component only.
	Args map[string]string `json:"args,omitempty" yaml:"args,omitempty"`

	// DefaultArgs are inherited by all descendants.
	DefaultArgs map[string]string `json:"defaultArgs,omitempty" yaml:"defaultArgs,omitempty"`

	// Depends lists component names this component depends on.
	Depends []string `json:"depends,omitempty" yaml:"depends,omitempty"`

	// ParentRelation orders this component's tasks relative to its
	// parent's: "before", "after" or "independent".
	ParentRelation string `json:"parentRelation,omitempty" yaml:"parentRelation,omitempty" validate:"omitempty,oneof=before after independent"`

	// Children are nested definitions, deployed as part of this subtree.
	Children []ComponentDefinition `json:"children,omitempty" yaml:"children,omitempty" validate:"dive"`
}
