package k8api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// fieldMap lists the keys that collide with reserved identifiers in
// definition files written for older deployer releases. Untyped payloads
// carry the suffixed form; the wire carries the real Kubernetes name.
var fieldMap = map[string]string{
	"namespace_": "namespace",
	"template_":  "template",
	"operator_":  "operator",
	"continue_":  "continue",
}

// reverseFieldMap is fieldMap with keys and values swapped.
var reverseFieldMap = func() map[string]string {
	m := make(map[string]string, len(fieldMap))
	for k, v := range fieldMap {
		m[v] = k
	}
	return m
}()

// NormalizeFieldNames rewrites suffixed reserved-identifier keys
// (namespace_, template_, operator_, continue_) to their Kubernetes names,
// recursively through objects and arrays. The input value is modified in
// place where possible and returned.
func NormalizeFieldNames(v any) any {
	return remapKeys(v, fieldMap)
}

// SuffixFieldNames applies the reverse mapping, producing the legacy
// suffixed keys. Used when echoing payloads back into definition form.
func SuffixFieldNames(v any) any {
	return remapKeys(v, reverseFieldMap)
}

func remapKeys(v any, mapping map[string]string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if renamed, ok := mapping[k]; ok {
				k = renamed
			}
			out[k] = remapKeys(val, mapping)
		}
		return out
	case []any:
		for i := range t {
			t[i] = remapKeys(t[i], mapping)
		}
		return t
	default:
		return v
	}
}

// MarshalBody serializes an object for the Kubernetes API. Typed bodies
// already carry correct JSON tags; untyped map payloads are passed through
// the field remap first so every HTTP payload is wire-clean.
func MarshalBody(v any) ([]byte, error) {
	if m, ok := v.(map[string]any); ok {
		v = NormalizeFieldNames(m)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalBody deserializes a Kubernetes API payload into out. When out is
// a *map[string]any the field remap is applied so callers see the canonical
// key names regardless of how the payload was authored.
func UnmarshalBody(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	if m, ok := out.(*map[string]any); ok && *m != nil {
		*m = NormalizeFieldNames(*m).(map[string]any)
	}
	return nil
}
