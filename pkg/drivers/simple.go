package drivers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

// The kinds below share the POST-then-done lifecycle from base; only their
// bodies differ.

// secretDriver manages core/v1 Secrets. Values come from secret.data
// (KEY=VALUE tokens, encoded by the driver) or secret.dataB64 (already
// base64).
type secretDriver struct {
	base
}

func newSecretDriver() *secretDriver {
	return &secretDriver{base{
		kind: engine.KindSecret,
		api:  apiPath{prefix: "/api/v1", resource: "secrets", namespaced: true},
	}}
}

func (d *secretDriver) Prepare(c *engine.Component) error {
	secret := &k8api.Secret{
		TypeMeta: k8api.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		Type:     c.GetArgOr("secret.type", "Opaque"),
	}
	c.Object = secret

	secret.Metadata.Name = c.Name
	secret.Metadata.Namespace = c.GetNamespace()

	for k, v := range c.GetArgAsKv("secret.data") {
		if secret.Data == nil {
			secret.Data = map[string][]byte{}
		}
		secret.Data[k] = []byte(v)
	}
	for k, v := range c.GetArgAsKv("secret.dataB64") {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return engine.NewConfigError(
				fmt.Sprintf("secret.dataB64: key %s is not base64", k), err).
				WithComponent(c.FQName())
		}
		if secret.Data == nil {
			secret.Data = map[string][]byte{}
		}
		secret.Data[k] = decoded
	}

	return nil
}

// ingressDriver manages networking.k8s.io/v1 Ingresses. A single rule is
// built from ingress.host, ingress.path and ingress.serviceName/Port.
type ingressDriver struct {
	base
}

func newIngressDriver() *ingressDriver {
	return &ingressDriver{base{
		kind: engine.KindIngress,
		api:  apiPath{prefix: "/apis/networking.k8s.io/v1", resource: "ingresses", namespaced: true},
	}}
}

func (d *ingressDriver) Prepare(c *engine.Component) error {
	ing := &k8api.Ingress{
		TypeMeta: k8api.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"},
	}
	c.Object = ing

	ing.Metadata.Name = c.Name
	ing.Metadata.Namespace = c.GetNamespace()

	serviceName := c.GetArgOr("ingress.serviceName", "")
	if serviceName == "" {
		if parent := c.Parent(); parent != nil && parent.Kind == engine.KindService {
			serviceName = parent.Name
		}
	}

	port, err := c.GetIntArg("ingress.servicePort", 80)
	if err != nil {
		return err
	}

	rule := k8api.IngressRule{
		Host: c.GetArgOr("ingress.host", ""),
		HTTP: &k8api.HTTPIngressRuleValue{
			Paths: []k8api.HTTPIngressPath{{
				Path:     c.GetArgOr("ingress.path", "/"),
				PathType: "Prefix",
				Backend: k8api.IngressBackend{
					Service: &k8api.IngressServiceBackend{
						Name: serviceName,
						Port: k8api.ServiceBackendPort{Number: port},
					},
				},
			}},
		},
	}
	ing.Spec.Rules = []k8api.IngressRule{rule}

	return nil
}

func (d *ingressDriver) Validate(c *engine.Component) error {
	// The backend can come from the argument or from a Service parent;
	// having neither is only detectable after Prepare, so check the
	// inputs here.
	if _, ok := c.GetArg("ingress.serviceName"); ok {
		return nil
	}
	if parent := c.Parent(); parent != nil && parent.Kind == engine.KindService {
		return nil
	}
	return engine.NewConfigError(
		"ingress needs ingress.serviceName or a Service parent", nil).
		WithComponent(c.FQName())
}

// persistentVolumeDriver manages core/v1 PersistentVolumes.
type persistentVolumeDriver struct {
	base
}

func newPersistentVolumeDriver() *persistentVolumeDriver {
	return &persistentVolumeDriver{base{
		kind: engine.KindPersistentVolume,
		api:  apiPath{prefix: "/api/v1", resource: "persistentvolumes", namespaced: false},
	}}
}

func (d *persistentVolumeDriver) Prepare(c *engine.Component) error {
	pv := &k8api.PersistentVolume{
		TypeMeta: k8api.TypeMeta{APIVersion: "v1", Kind: "PersistentVolume"},
	}
	c.Object = pv

	pv.Metadata.Name = c.Name

	if capacity, ok := c.GetArg("pv.capacity"); ok {
		pv.Spec.Capacity = map[string]string{"storage": capacity}
	}
	if modes := c.GetArgAsStringList("pv.accessModes"); len(modes) > 0 {
		pv.Spec.AccessModes = modes
	} else {
		pv.Spec.AccessModes = []string{"ReadWriteOnce"}
	}
	pv.Spec.StorageClassName = c.GetArgOr("pv.storageClass", "")
	if hostPath, ok := c.GetArg("pv.hostPath"); ok {
		pv.Spec.HostPath = &k8api.HostPathVolume{Path: hostPath}
	}

	return nil
}

// serviceAccountDriver manages core/v1 ServiceAccounts.
type serviceAccountDriver struct {
	base
}

func newServiceAccountDriver() *serviceAccountDriver {
	return &serviceAccountDriver{base{
		kind: engine.KindServiceAccount,
		api:  apiPath{prefix: "/api/v1", resource: "serviceaccounts", namespaced: true},
	}}
}

func (d *serviceAccountDriver) Prepare(c *engine.Component) error {
	sa := &k8api.ServiceAccount{
		TypeMeta: k8api.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"},
	}
	c.Object = sa

	sa.Metadata.Name = c.Name
	sa.Metadata.Namespace = c.GetNamespace()
	return nil
}

// rbacRules parses the rbac.rules argument: semicolon-separated rules of
// the form "apiGroups|resources|verbs", each part comma-separated.
func rbacRules(c *engine.Component) []k8api.PolicyRule {
	raw, ok := c.GetArg("rbac.rules")
	if !ok || raw == "" {
		return []k8api.PolicyRule{{
			APIGroups: []string{""},
			Resources: []string{"pods"},
			Verbs:     []string{"get", "list", "watch"},
		}}
	}

	var rules []k8api.PolicyRule
	for _, part := range strings.Split(raw, ";") {
		fields := strings.Split(part, "|")
		if len(fields) != 3 {
			continue
		}
		rules = append(rules, k8api.PolicyRule{
			APIGroups: strings.Split(fields[0], ","),
			Resources: strings.Split(fields[1], ","),
			Verbs:     strings.Split(fields[2], ","),
		})
	}
	return rules
}

// roleDriver manages rbac/v1 Roles.
type roleDriver struct {
	base
}

func newRoleDriver() *roleDriver {
	return &roleDriver{base{
		kind: engine.KindRole,
		api:  apiPath{prefix: "/apis/rbac.authorization.k8s.io/v1", resource: "roles", namespaced: true},
	}}
}

func (d *roleDriver) Prepare(c *engine.Component) error {
	role := &k8api.Role{
		TypeMeta: k8api.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "Role"},
		Rules:    rbacRules(c),
	}
	c.Object = role

	role.Metadata.Name = c.Name
	role.Metadata.Namespace = c.GetNamespace()
	return nil
}

// clusterRoleDriver manages rbac/v1 ClusterRoles.
type clusterRoleDriver struct {
	base
}

func newClusterRoleDriver() *clusterRoleDriver {
	return &clusterRoleDriver{base{
		kind: engine.KindClusterRole,
		api:  apiPath{prefix: "/apis/rbac.authorization.k8s.io/v1", resource: "clusterroles", namespaced: false},
	}}
}

func (d *clusterRoleDriver) Prepare(c *engine.Component) error {
	role := &k8api.ClusterRole{
		TypeMeta: k8api.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "ClusterRole"},
		Rules:    rbacRules(c),
	}
	c.Object = role

	role.Metadata.Name = c.Name
	return nil
}

// bindingSubjects builds the subject list for role bindings from the
// rbac.serviceAccount argument, defaulting to "default".
func bindingSubjects(c *engine.Component) []k8api.Subject {
	return []k8api.Subject{{
		Kind:      "ServiceAccount",
		Name:      c.GetArgOr("rbac.serviceAccount", "default"),
		Namespace: c.GetNamespace(),
	}}
}

// roleBindingDriver manages rbac/v1 RoleBindings.
type roleBindingDriver struct {
	base
}

func newRoleBindingDriver() *roleBindingDriver {
	return &roleBindingDriver{base{
		kind: engine.KindRoleBinding,
		api:  apiPath{prefix: "/apis/rbac.authorization.k8s.io/v1", resource: "rolebindings", namespaced: true},
	}}
}

func (d *roleBindingDriver) Prepare(c *engine.Component) error {
	binding := &k8api.RoleBinding{
		TypeMeta: k8api.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "RoleBinding"},
		Subjects: bindingSubjects(c),
		RoleRef: k8api.RoleRef{
			APIGroup: "rbac.authorization.k8s.io",
			Kind:     "Role",
			Name:     c.GetArgOr("rbac.role", c.Name),
		},
	}
	c.Object = binding

	binding.Metadata.Name = c.Name
	binding.Metadata.Namespace = c.GetNamespace()
	return nil
}

// clusterRoleBindingDriver manages rbac/v1 ClusterRoleBindings.
type clusterRoleBindingDriver struct {
	base
}

func newClusterRoleBindingDriver() *clusterRoleBindingDriver {
	return &clusterRoleBindingDriver{base{
		kind: engine.KindClusterRoleBinding,
		api:  apiPath{prefix: "/apis/rbac.authorization.k8s.io/v1", resource: "clusterrolebindings", namespaced: false},
	}}
}

func (d *clusterRoleBindingDriver) Prepare(c *engine.Component) error {
	binding := &k8api.ClusterRoleBinding{
		TypeMeta: k8api.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "ClusterRoleBinding"},
		Subjects: bindingSubjects(c),
		RoleRef: k8api.RoleRef{
			APIGroup: "rbac.authorization.k8s.io",
			Kind:     "ClusterRole",
			Name:     c.GetArgOr("rbac.role", c.Name),
		},
	}
	c.Object = binding

	binding.Metadata.Name = c.Name
	return nil
}
