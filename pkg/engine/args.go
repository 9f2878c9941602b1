package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

// concatenatedArgKeys are merged across the ancestor chain by space-joined
// concatenation instead of nearest-wins.
var concatenatedArgKeys = map[string]bool{
	"pod.args": true,
	"pod.env":  true,
}

// mergeArgs computes a component's effective arguments: its own args merged
// with each ancestor's defaultArgs. For pod.args and pod.env the values are
// concatenated with a single space, descendant first; for every other key
// the nearest value wins and ancestors only fill gaps.
func mergeArgs(own map[string]string, pathToRoot []*Component) map[string]string {
	merged := make(map[string]string, len(own))
	for k, v := range own {
		merged[k] = v
	}

	for _, node := range pathToRoot {
		for k, v := range node.DefaultArgs {
			if concatenatedArgKeys[k] {
				if cur := merged[k]; cur != "" {
					merged[k] = cur + " " + v
				} else {
					merged[k] = v
				}
			} else if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}

	return merged
}

// GetArg returns the effective argument value and whether it was set.
func (c *Component) GetArg(name string) (string, bool) {
	v, ok := c.effectiveArgs[name]
	return v, ok
}

// GetArgOr returns the effective argument value, or defaultVal when unset.
func (c *Component) GetArgOr(name, defaultVal string) string {
	if v, ok := c.effectiveArgs[name]; ok {
		return v
	}
	return defaultVal
}

// GetBoolArg parses a boolean argument. Accepted values are true|yes|1 and
// false|no|0; anything else is a configuration error. The first return is
// nil when the argument is unset.
func (c *Component) GetBoolArg(name string) (*bool, error) {
	v, ok := c.effectiveArgs[name]
	if !ok {
		return nil, nil
	}

	switch v {
	case "true", "yes", "1":
		t := true
		return &t, nil
	case "false", "no", "0":
		f := false
		return &f, nil
	default:
		return nil, NewConfigError(
			fmt.Sprintf("argument %s is not a boolean value (1|0|true|false|yes|no): %q", name, v), nil)
	}
}

// GetIntArg parses an integer argument, returning defaultVal when unset or
// empty.
func (c *Component) GetIntArg(name string, defaultVal int) (int, error) {
	v, ok := c.effectiveArgs[name]
	if !ok || v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewConfigError(fmt.Sprintf("argument %s is not an integer: %q", name, v), err)
	}
	return n, nil
}

// GetArgAsStringList tokenizes an argument into a whitespace-separated list.
// Single quotes group a token: 'a b' is one element. A space terminates only
// unquoted tokens; inside quotes it is part of the value.
func (c *Component) GetArgAsStringList(name string) []string {
	return SplitArgList(c.GetArgOr(name, ""))
}

// SplitArgList implements the string-list tokenization shared by all list
// arguments.
func SplitArgList(values string) []string {
	var out []string
	var value strings.Builder

	const (
		skipping = iota
		inString
		inQuoted
	)
	state := skipping

	flush := func() {
		out = append(out, value.String())
		value.Reset()
		state = skipping
	}

	for _, ch := range values {
		switch state {
		case skipping:
			if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
				continue
			}
			if ch == '\'' {
				state = inQuoted
				continue
			}
			state = inString
			value.WriteRune(ch)

		case inString:
			if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
				flush()
				continue
			}
			value.WriteRune(ch)

		case inQuoted:
			if ch == '\'' {
				flush()
				continue
			}
			value.WriteRune(ch)
		}
	}

	if value.Len() > 0 {
		out = append(out, value.String())
	}

	return out
}

// GetArgAsEnvList parses an argument as NAME[=VALUE] tokens into container
// environment variables. Tokens without '=' become empty variables; tokens
// with an empty name are dropped.
func (c *Component) GetArgAsEnvList(name string) []k8api.KeyValue {
	var out []k8api.KeyValue
	for _, tok := range c.GetArgAsStringList(name) {
		kv := k8api.KeyValue{Name: tok}
		if pos := strings.IndexByte(tok, '='); pos >= 0 {
			kv.Name = tok[:pos]
			kv.Value = tok[pos+1:]
		}
		if kv.Name != "" {
			out = append(out, kv)
		}
	}
	return out
}

// GetArgAsKv parses an argument as KEY[=VALUE] tokens collapsed into a map.
// Duplicate keys keep the last value.
func (c *Component) GetArgAsKv(name string) map[string]string {
	out := map[string]string{}
	for _, tok := range c.GetArgAsStringList(name) {
		if pos := strings.IndexByte(tok, '='); pos >= 0 {
			if pos > 0 {
				out[tok[:pos]] = tok[pos+1:]
			}
		} else if tok != "" {
			out[tok] = ""
		}
	}
	return out
}
