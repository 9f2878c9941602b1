package engine

import (
	"testing"
)

func TestParseClusterArg_KubeconfigOnly(t *testing.T) {
	kubeconfig, variables := ParseClusterArg("prod.conf")
	if kubeconfig != "prod.conf" {
		t.Errorf("Expected prod.conf, got %q", kubeconfig)
	}
	if len(variables) != 0 {
		t.Errorf("Expected no variables, got %v", variables)
	}
}

func TestParseClusterArg_Variables(t *testing.T) {
	kubeconfig, variables := ParseClusterArg("prod.conf:namespace=prod,name=p1,flag")
	if kubeconfig != "prod.conf" {
		t.Errorf("Expected prod.conf, got %q", kubeconfig)
	}
	if variables["namespace"] != "prod" || variables["name"] != "p1" {
		t.Errorf("Wrong variables: %v", variables)
	}
	if v, ok := variables["flag"]; !ok || v != "" {
		t.Errorf("Expected empty flag variable, got %q ok=%v", v, ok)
	}
}

func TestClusterNameFromKubeconfig(t *testing.T) {
	cases := []struct {
		kubeconfig string
		want       string
	}{
		{"prod.conf", "prod"},
		{"/home/jane/.kube/staging.yaml", "staging"},
		{"plain", "plain"},
		{"", "default"},
		{".hidden", "default"},
	}

	for _, tc := range cases {
		if got := clusterNameFromKubeconfig(tc.kubeconfig); got != tc.want {
			t.Errorf("%q: expected %q, got %q", tc.kubeconfig, tc.want, got)
		}
	}
}
