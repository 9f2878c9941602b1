// Package vars implements the variable environment consulted during
// definition preprocessing. Values resolve from per-cluster variables first,
// then from the process environment, then from an inline default.
package vars

import (
	"fmt"
	"os"
	"strings"
)

// Environment resolves variable references for one cluster.
type Environment struct {
	// Variables are the per-cluster variables parsed from the cluster
	// argument string.
	Variables map[string]string

	// LookupEnv resolves process environment variables. Defaults to
	// os.LookupEnv; tests may replace it.
	LookupEnv func(string) (string, bool)
}

// NewEnvironment creates an environment over the given cluster variables.
func NewEnvironment(variables map[string]string) *Environment {
	return &Environment{
		Variables: variables,
		LookupEnv: os.LookupEnv,
	}
}

// Get resolves a variable name against cluster variables, then the process
// environment, then the supplied default. The second return is false when
// none of the three sources had a value.
func (e *Environment) Get(name string, defaultValue *string) (string, bool) {
	if v, ok := e.Variables[name]; ok {
		return v, true
	}

	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(name); ok {
		return v, true
	}

	if defaultValue != nil {
		return *defaultValue, true
	}

	return "", false
}

// expandState enumerates the scanner states of Expand.
type expandState int

const (
	stateCopy expandState = iota
	stateBackslash
	stateDollar
	stateScanName
	stateScanDefault
)

// Expand performs variable substitution over a JSON or YAML document.
//
// References have the form ${NAME} or ${NAME,DEFAULT}. Names are limited to
// alphanumerics, '.' and '_'. A backslash escapes a following '$'. A default
// value whose first character is '$' is resolved as a process environment
// variable reference. Double quotes inside a default value are
// backslash-escaped on insertion so the result stays valid JSON.
// An unterminated reference or a malformed name is an error.
func Expand(input string, env *Environment) (string, error) {
	var out strings.Builder
	out.Grow(len(input))

	state := stateCopy
	var name strings.Builder
	var defValue strings.Builder
	hasDefault := false

	commit := func() {
		var def *string
		if hasDefault {
			d := defValue.String()
			if strings.HasPrefix(d, "$") {
				if ev, ok := env.lookupEnv(d[1:]); ok {
					d = ev
				}
			}
			def = &d
		}
		v, _ := env.Get(name.String(), def)
		out.WriteString(v)
	}

	for _, ch := range input {
		switch state {
		case stateCopy:
			if ch == '\\' {
				state = stateBackslash
				continue
			}
			if ch == '$' {
				state = stateDollar
				continue
			}
			out.WriteRune(ch)

		case stateBackslash:
			if ch != '$' {
				out.WriteByte('\\')
			}
			out.WriteRune(ch)
			state = stateCopy

		case stateDollar:
			if ch == '{' {
				name.Reset()
				defValue.Reset()
				hasDefault = false
				state = stateScanName
				continue
			}
			out.WriteByte('$')
			out.WriteRune(ch)
			state = stateCopy

		case stateScanName:
			if isNameRune(ch) {
				name.WriteRune(ch)
				continue
			}
			if ch == ',' {
				hasDefault = true
				state = stateScanDefault
				continue
			}
			if ch == '}' {
				commit()
				state = stateCopy
				continue
			}
			return "", fmt.Errorf("variable expansion: bad character %q in name starting with %q", ch, name.String())

		case stateScanDefault:
			if ch == '}' {
				commit()
				state = stateCopy
				continue
			}
			if ch == '"' {
				defValue.WriteByte('\\')
			}
			defValue.WriteRune(ch)
		}
	}

	if state != stateCopy {
		return "", fmt.Errorf("variable expansion: reference %q not terminated with '}'", name.String())
	}

	return out.String(), nil
}

// lookupEnv consults only the process environment, never cluster variables.
// Used for '$'-prefixed default values.
func (e *Environment) lookupEnv(name string) (string, bool) {
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return lookup(name)
}

func isNameRune(ch rune) bool {
	switch {
	case ch >= 'a' && ch <= 'z':
		return true
	case ch >= 'A' && ch <= 'Z':
		return true
	case ch >= '0' && ch <= '9':
		return true
	case ch == '.' || ch == '_':
		return true
	}
	return false
}
