// Package config holds the process-wide deployer configuration and the
// component definition loader.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// Mode selects what the engine does with the component tree.
type Mode string

const (
	// ModeDeploy creates the resources and monitors them to readiness.
	ModeDeploy Mode = "deploy"

	// ModeDelete tears the resources down in reverse dependency order.
	ModeDelete Mode = "delete"

	// ModeShowDependencies writes the dependency graphs as GraphViz DOT
	// files without touching the cluster.
	ModeShowDependencies Mode = "show-dependencies"
)

// Validate checks the mode is one of the known values.
func (m Mode) Validate() error {
	switch m {
	case ModeDeploy, ModeDelete, ModeShowDependencies:
		return nil
	default:
		return fmt.Errorf("invalid mode: %s", m)
	}
}

// Config is the process-wide configuration, threaded explicitly through
// construction into every cluster context.
type Config struct {
	// Mode is the engine mode.
	Mode Mode `validate:"required"`

	// DefinitionFile is the path of the component tree definition.
	DefinitionFile string `validate:"required"`

	// Clusters are the cluster argument strings,
	// "<kubeconfig>[:<k1=v1,k2=v2,...>]".
	Clusters []string `validate:"min=1"`

	// Namespace is the fallback namespace for components that neither
	// carry a namespace variable nor inherit one.
	Namespace string `validate:"required"`

	// IncludeFilter is a regular expression; components whose name does
	// not match are pruned from the tree.
	IncludeFilter string

	// ExcludeFilter is a regular expression; components whose name
	// matches are pruned from the tree.
	ExcludeFilter string

	// AutoMaintainNamespace synthesizes a Namespace child under the root
	// and makes every occupant depend on it.
	AutoMaintainNamespace bool

	// Dotfile is the file-name suffix for dependency dumps; each root
	// writes "<root-name>-<Dotfile>".
	Dotfile string

	// TaskTimeout bounds how long a task may sit in WAITING before it is
	// failed. Zero disables the deadline.
	TaskTimeout time.Duration

	// PollInterval is the delay before a readiness probe re-arms.
	PollInterval time.Duration

	// IgnoreErrors keeps a component alive when one of its HTTP requests
	// fails: the failure is logged and the task is marked DONE, not FAILED,
	// so the task state does not record the failure.
	IgnoreErrors bool

	// APIServer, when set, is used as the cluster API base URL instead of
	// spawning kubectl proxy. Intended for tests and pre-established
	// tunnels.
	APIServer string

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string

	// TraceExporter selects the span exporter: none, stdout or otlp.
	TraceExporter string `validate:"omitempty,oneof=none stdout otlp"`

	// TraceEndpoint is the OTLP collector endpoint.
	TraceEndpoint string

	includeRE *regexp.Regexp
	excludeRE *regexp.Regexp
}

// Default returns a configuration with the standard defaults applied.
func Default() *Config {
	return &Config{
		Namespace:     "default",
		IncludeFilter: ".*",
		Dotfile:       "dependencies.dot",
		TaskTimeout:   15 * time.Minute,
		PollInterval:  2 * time.Second,
		TraceExporter: "none",
	}
}

// Validate checks field constraints and compiles the name filters.
func (c *Config) Validate() error {
	if err := c.Mode.Validate(); err != nil {
		return err
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	include := c.IncludeFilter
	if include == "" {
		include = ".*"
	}
	re, err := regexp.Compile(include)
	if err != nil {
		return fmt.Errorf("config: include filter: %w", err)
	}
	c.includeRE = re

	if c.ExcludeFilter != "" {
		re, err := regexp.Compile(c.ExcludeFilter)
		if err != nil {
			return fmt.Errorf("config: exclude filter: %w", err)
		}
		c.excludeRE = re
	}

	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}

	return nil
}

// Matches reports whether a component name survives the include/exclude
// filters.
func (c *Config) Matches(name string) bool {
	if c.excludeRE != nil && c.excludeRE.MatchString(name) {
		return false
	}
	if c.includeRE == nil {
		return true
	}
	return c.includeRE.MatchString(name)
}
