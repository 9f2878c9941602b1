package engine

import "fmt"

// Kind is the closed enumeration of supported Kubernetes resource kinds.
type Kind string

const (
	KindApp                Kind = "App"
	KindJob                Kind = "Job"
	KindDeployment         Kind = "Deployment"
	KindStatefulSet        Kind = "StatefulSet"
	KindService            Kind = "Service"
	KindConfigMap          Kind = "ConfigMap"
	KindSecret             Kind = "Secret"
	KindPersistentVolume   Kind = "PersistentVolume"
	KindIngress            Kind = "Ingress"
	KindNamespace          Kind = "Namespace"
	KindDaemonSet          Kind = "DaemonSet"
	KindRole               Kind = "Role"
	KindClusterRole        Kind = "ClusterRole"
	KindRoleBinding        Kind = "RoleBinding"
	KindClusterRoleBinding Kind = "ClusterRoleBinding"
	KindServiceAccount     Kind = "ServiceAccount"
)

// allKinds lists every valid kind for parsing and validation.
var allKinds = []Kind{
	KindApp, KindJob, KindDeployment, KindStatefulSet, KindService,
	KindConfigMap, KindSecret, KindPersistentVolume, KindIngress,
	KindNamespace, KindDaemonSet, KindRole, KindClusterRole,
	KindRoleBinding, KindClusterRoleBinding, KindServiceAccount,
}

// ParseKind converts a definition kind string into a Kind. An unknown kind
// is a fatal configuration error.
func ParseKind(s string) (Kind, error) {
	for _, k := range allKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", NewConfigError(fmt.Sprintf("unknown kind: %s", s), nil)
}

// ParentRelation orders a component's tasks relative to its parent's tasks.
type ParentRelation int

const (
	// RelationIndependent adds no ordering between child and parent tasks.
	RelationIndependent ParentRelation = iota

	// RelationAfter makes the child's tasks wait for the parent's.
	RelationAfter

	// RelationBefore makes the parent's tasks wait for the child's.
	RelationBefore
)

// ParseParentRelation converts the definition string. The empty string maps
// to RelationIndependent.
func ParseParentRelation(s string) (ParentRelation, error) {
	switch s {
	case "", "independent":
		return RelationIndependent, nil
	case "after":
		return RelationAfter, nil
	case "before":
		return RelationBefore, nil
	default:
		return RelationIndependent, NewConfigError(fmt.Sprintf("unknown parent relation: %s", s), nil)
	}
}

func (r ParentRelation) String() string {
	switch r {
	case RelationAfter:
		return "after"
	case RelationBefore:
		return "before"
	default:
		return "independent"
	}
}
