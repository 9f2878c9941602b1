package k8api

import (
	"strings"
	"testing"
)

func TestNormalizeFieldNames_Nested(t *testing.T) {
	in := map[string]any{
		"metadata": map[string]any{
			"namespace_": "prod",
			"name":       "web",
		},
		"spec": map[string]any{
			"template_": map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{"name": "c1"},
					},
				},
			},
		},
	}

	out := NormalizeFieldNames(in).(map[string]any)

	meta := out["metadata"].(map[string]any)
	if meta["namespace"] != "prod" {
		t.Errorf("Expected namespace key, got %v", meta)
	}
	if _, ok := meta["namespace_"]; ok {
		t.Error("Suffixed key should be gone")
	}

	spec := out["spec"].(map[string]any)
	if _, ok := spec["template"]; !ok {
		t.Errorf("Expected template key, got %v", spec)
	}
}

func TestSuffixFieldNames_RoundTrip(t *testing.T) {
	in := map[string]any{
		"continue": "token",
		"operator": "In",
	}

	suffixed := SuffixFieldNames(in).(map[string]any)
	if _, ok := suffixed["continue_"]; !ok {
		t.Errorf("Expected continue_ key, got %v", suffixed)
	}

	back := NormalizeFieldNames(suffixed).(map[string]any)
	if back["continue"] != "token" || back["operator"] != "In" {
		t.Errorf("Round trip lost values: %v", back)
	}
}

func TestMarshalBody_RemapsUntypedPayloads(t *testing.T) {
	body := map[string]any{
		"metadata": map[string]any{"namespace_": "dev"},
	}

	data, err := MarshalBody(body)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	s := string(data)
	if !strings.Contains(s, `"namespace":"dev"`) {
		t.Errorf("Expected remapped key on the wire, got %s", s)
	}
	if strings.Contains(s, "namespace_") {
		t.Errorf("Suffixed key leaked to the wire: %s", s)
	}
}

func TestMarshalBody_TypedObjectUnchanged(t *testing.T) {
	d := &Deployment{
		TypeMeta: TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		Metadata: ObjectMeta{Name: "web", Namespace: "prod"},
	}
	d.Spec.Replicas = 2

	data, err := MarshalBody(d)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(data), `"namespace":"prod"`) {
		t.Errorf("Typed body missing namespace: %s", data)
	}
}
