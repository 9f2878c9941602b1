package drivers_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
	"github.com/bridgecrew-perf6/k8deployer/pkg/drivers"
	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/telemetry"
)

// buildTree parses a definition and prepares the tree without touching any
// cluster.
func buildTree(t *testing.T, mode config.Mode, definition string) *engine.Component {
	t.Helper()

	cfg := config.Default()
	cfg.Mode = mode
	cfg.DefinitionFile = "unused.yaml"
	cfg.Clusters = []string{"test.conf"}
	cfg.TaskTimeout = time.Minute
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	cl, err := engine.NewCluster(cfg, "test.conf", drivers.NewRegistry(), zerolog.Nop(), metrics, nil)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}

	if err := cl.BuildTree([]byte(definition)); err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if err := cl.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	return cl.Root()
}

func find(root *engine.Component, name string) *engine.Component {
	var found *engine.Component
	root.ForAllComponents(func(c *engine.Component) {
		if c.Name == name {
			found = c
		}
	})
	return found
}

func TestRegistry_CoversAllKinds(t *testing.T) {
	registry := drivers.NewRegistry()

	kinds := []engine.Kind{
		engine.KindApp, engine.KindJob, engine.KindDeployment,
		engine.KindStatefulSet, engine.KindService, engine.KindConfigMap,
		engine.KindSecret, engine.KindPersistentVolume, engine.KindIngress,
		engine.KindNamespace, engine.KindDaemonSet, engine.KindRole,
		engine.KindClusterRole, engine.KindRoleBinding,
		engine.KindClusterRoleBinding, engine.KindServiceAccount,
	}

	for _, kind := range kinds {
		if _, ok := registry.Driver(kind); !ok {
			t.Errorf("No driver registered for %s", kind)
		}
	}
}

func TestDeploymentPrepare_BodyAndSelector(t *testing.T) {
	root := buildTree(t, config.ModeDeploy, `{
		"name": "web", "kind": "App",
		"children": [{
			"name": "web-dep", "kind": "Deployment",
			"args": {"replicas": "3", "image": "nginx:1.25", "port": "8080", "protocol": "TCP"}
		}]
	}`)

	dep := find(root, "web-dep")
	body, ok := dep.Object.(*k8api.Deployment)
	if !ok {
		t.Fatal("Deployment component has no deployment body")
	}

	if body.Spec.Replicas != 3 {
		t.Errorf("Expected 3 replicas, got %d", body.Spec.Replicas)
	}
	if body.Metadata.Namespace != "default" {
		t.Errorf("Expected default namespace, got %q", body.Metadata.Namespace)
	}
	if body.Spec.Selector.MatchLabels["app"] != "web-dep" {
		t.Errorf("Wrong selector: %v", body.Spec.Selector.MatchLabels)
	}

	containers := body.Spec.Template.Spec.Containers
	if len(containers) != 1 || containers[0].Image != "nginx:1.25" {
		t.Fatalf("Wrong containers: %+v", containers)
	}
	if len(containers[0].Ports) != 1 || containers[0].Ports[0].ContainerPort != 8080 {
		t.Errorf("Wrong ports: %+v", containers[0].Ports)
	}
}

func TestDeploymentPrepare_ImplicitServicePorts(t *testing.T) {
	root := buildTree(t, config.ModeDeploy, `{
		"name": "web", "kind": "App",
		"children": [{
			"name": "web-dep", "kind": "Deployment",
			"args": {"replicas": "1", "image": "nginx", "port": "8080",
				"service.enabled": "true", "service.nodePort": "30080"}
		}]
	}`)

	svc := find(root, "web-dep-svc")
	if svc == nil {
		t.Fatal("Expected synthesized service")
	}

	body, ok := svc.Object.(*k8api.Service)
	if !ok {
		t.Fatal("Service component has no service body")
	}

	if body.Spec.Type != "NodePort" {
		t.Errorf("Expected NodePort type, got %q", body.Spec.Type)
	}
	if len(body.Spec.Ports) != 1 {
		t.Fatalf("Expected one derived port, got %+v", body.Spec.Ports)
	}
	port := body.Spec.Ports[0]
	if port.Port != 8080 || port.NodePort != 30080 {
		t.Errorf("Wrong port mapping: %+v", port)
	}
	if body.Spec.Selector["app"] != "web-dep" {
		t.Errorf("Service selector should target the deployment, got %v", body.Spec.Selector)
	}
}

func TestDeploymentPrepare_ConfigMapMount(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "app.ini")
	if err := os.WriteFile(cfgFile, []byte("key=value\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	definition, _ := json.Marshal(map[string]any{
		"name": "web", "kind": "App",
		"children": []map[string]any{{
			"name": "web-dep", "kind": "Deployment",
			"args": map[string]string{
				"replicas":        "1",
				"image":           "nginx",
				"config.fromFile": cfgFile,
			},
		}},
	})

	root := buildTree(t, config.ModeDeploy, string(definition))

	conf := find(root, "web-dep-conf")
	if conf == nil {
		t.Fatal("Expected synthesized configmap")
	}
	cm := conf.Object.(*k8api.ConfigMap)
	if string(cm.BinaryData["app.ini"]) != "key=value\n" {
		t.Errorf("Wrong configmap payload: %v", cm.BinaryData)
	}

	dep := find(root, "web-dep").Object.(*k8api.Deployment)
	podSpec := dep.Spec.Template.Spec
	if len(podSpec.Volumes) != 1 || podSpec.Volumes[0].ConfigMap.Name != "web-dep-conf" {
		t.Fatalf("Wrong volumes: %+v", podSpec.Volumes)
	}
	mounts := podSpec.Containers[0].VolumeMounts
	if len(mounts) != 1 || mounts[0].MountPath != "/config" || !mounts[0].ReadOnly {
		t.Errorf("Wrong mount: %+v", mounts)
	}
}

func TestNamespacePrepare_NameFromArgs(t *testing.T) {
	root := buildTree(t, config.ModeDeploy, `{
		"name": "root", "kind": "App",
		"children": [{
			"name": "prod-ns", "kind": "Namespace",
			"args": {"namespace.name": "prod"}
		}]
	}`)

	ns := find(root, "prod-ns")
	body := ns.Object.(*k8api.Namespace)
	if body.Metadata.Name != "prod" {
		t.Errorf("Expected namespace prod, got %q", body.Metadata.Name)
	}
	if ns.NamespaceObjectName() != "prod" {
		t.Errorf("Wrong namespace object name: %q", ns.NamespaceObjectName())
	}
}

func TestSecretPrepare_RejectsBadBase64(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeDeploy
	cfg.DefinitionFile = "unused.yaml"
	cfg.Clusters = []string{"test.conf"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	metrics, _ := telemetry.NewMetrics(telemetry.MetricsConfig{})
	cl, err := engine.NewCluster(cfg, "test.conf", drivers.NewRegistry(), zerolog.Nop(), metrics, nil)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}

	err = cl.BuildTree([]byte(`{
		"name": "root", "kind": "App",
		"children": [{
			"name": "creds", "kind": "Secret",
			"args": {"secret.dataB64": "key=!!!notbase64!!!"}
		}]
	}`))
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	if err := cl.Prepare(); err == nil {
		t.Error("Expected error for invalid base64 secret data")
	}
}

func TestJobPrepare_RestartPolicy(t *testing.T) {
	root := buildTree(t, config.ModeDeploy, `{
		"name": "root", "kind": "App",
		"children": [{
			"name": "migrate", "kind": "Job",
			"args": {"image": "migrator:1", "job.backoffLimit": "2"}
		}]
	}`)

	job := find(root, "migrate").Object.(*k8api.Job)
	if job.Spec.Template.Spec.RestartPolicy != "Never" {
		t.Errorf("Expected Never restart policy, got %q", job.Spec.Template.Spec.RestartPolicy)
	}
	if job.Spec.BackoffLimit != 2 {
		t.Errorf("Expected backoff limit 2, got %d", job.Spec.BackoffLimit)
	}
}

func TestIngressValidate_NeedsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeDeploy
	cfg.DefinitionFile = "unused.yaml"
	cfg.Clusters = []string{"test.conf"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	metrics, _ := telemetry.NewMetrics(telemetry.MetricsConfig{})
	cl, err := engine.NewCluster(cfg, "test.conf", drivers.NewRegistry(), zerolog.Nop(), metrics, nil)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}

	err = cl.BuildTree([]byte(`{
		"name": "root", "kind": "App",
		"children": [{"name": "edge", "kind": "Ingress"}]
	}`))
	if err == nil {
		t.Error("Expected validation error for ingress without backend")
	}
}

func TestRBACPrepare_RulesParsed(t *testing.T) {
	root := buildTree(t, config.ModeDeploy, `{
		"name": "root", "kind": "App",
		"children": [{
			"name": "reader", "kind": "Role",
			"args": {"rbac.rules": "|pods,services|get,list;apps|deployments|get"}
		}]
	}`)

	role := find(root, "reader").Object.(*k8api.Role)
	if len(role.Rules) != 2 {
		t.Fatalf("Expected 2 rules, got %+v", role.Rules)
	}
	if role.Rules[0].Resources[1] != "services" || role.Rules[1].APIGroups[0] != "apps" {
		t.Errorf("Wrong rules: %+v", role.Rules)
	}
}
