package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bridgecrew-perf6/k8deployer/pkg/vars"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefinition_YAMLToJSON(t *testing.T) {
	path := writeFile(t, "app.yaml", `
name: web
kind: App
children:
  - name: web-dep
    kind: Deployment
    args:
      replicas: "2"
`)

	data, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	def, err := ParseDefinition(data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if def.Name != "web" || def.Kind != "App" {
		t.Errorf("Wrong root: %+v", def)
	}
	if len(def.Children) != 1 || def.Children[0].Args["replicas"] != "2" {
		t.Errorf("Wrong children: %+v", def.Children)
	}
}

func TestLoadDefinition_RejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "app.toml", "name = 'x'")

	if _, err := LoadDefinition(path); err == nil {
		t.Error("Expected error for unknown extension")
	}
}

func TestParseDefinition_ExpandedVariables(t *testing.T) {
	path := writeFile(t, "app.yaml", `
name: web
kind: App
defaultArgs:
  image: ${IMAGE,nginx:latest}
`)

	data, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	env := vars.NewEnvironment(map[string]string{"IMAGE": "registry/web:1.2"})
	env.LookupEnv = func(string) (string, bool) { return "", false }
	expanded, err := vars.Expand(string(data), env)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	def, err := ParseDefinition([]byte(expanded))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if def.DefaultArgs["image"] != "registry/web:1.2" {
		t.Errorf("Variable not expanded: %+v", def.DefaultArgs)
	}
}

func TestParseDefinition_SchemaRejectsBadShape(t *testing.T) {
	if _, err := ParseDefinition([]byte(`{"name":"x","kind":"App","children":"nope"}`)); err == nil {
		t.Error("Expected schema error for non-array children")
	}
}

func TestParseDefinition_SchemaRejectsMissingKind(t *testing.T) {
	if _, err := ParseDefinition([]byte(`{"name":"x"}`)); err == nil {
		t.Error("Expected schema error for missing kind")
	}
}

func TestParseDefinition_BadParentRelation(t *testing.T) {
	if _, err := ParseDefinition([]byte(`{"name":"x","kind":"App","parentRelation":"sideways"}`)); err == nil {
		t.Error("Expected error for unknown parent relation")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeDeploy
	cfg.DefinitionFile = "app.yaml"
	cfg.Clusters = []string{"kubeconfig.prod"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}

	if !cfg.Matches("anything") {
		t.Error("Default include filter should match everything")
	}
}

func TestConfig_Filters(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeDeploy
	cfg.DefinitionFile = "app.yaml"
	cfg.Clusters = []string{"kubeconfig.prod"}
	cfg.IncludeFilter = "^web.*"
	cfg.ExcludeFilter = ".*-canary$"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}

	if !cfg.Matches("web-dep") {
		t.Error("web-dep should match")
	}
	if cfg.Matches("db") {
		t.Error("db should not match include filter")
	}
	if cfg.Matches("web-canary") {
		t.Error("web-canary should be excluded")
	}
}

func TestConfig_BadMode(t *testing.T) {
	cfg := Default()
	cfg.Mode = "drift"
	cfg.DefinitionFile = "app.yaml"
	cfg.Clusters = []string{"kubeconfig"}

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
