// Package k8api holds the subset of the Kubernetes API surface the deployer
// reads and writes: resource bodies for the supported kinds, the event
// objects delivered by the watch stream, and the JSON field remap applied to
// untyped payloads.
package k8api

// Object is implemented by every resource body that can be sent to or read
// from the Kubernetes API.
type Object interface {
	// GetObjectMeta returns the mutable metadata of the object.
	GetObjectMeta() *ObjectMeta
}

// TypeMeta identifies the API group/version and kind of an object.
type TypeMeta struct {
	APIVersion string `json:"apiVersion,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

// ObjectMeta is the standard object metadata block.
type ObjectMeta struct {
	Name        string            `json:"name,omitempty"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	UID         string            `json:"uid,omitempty"`
}

// KeyValue is a name/value pair used for container environment variables.
type KeyValue struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// ContainerPort describes a port exposed by a container.
type ContainerPort struct {
	Name          string `json:"name,omitempty"`
	ContainerPort int    `json:"containerPort"`
	HostPort      int    `json:"hostPort,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
}

// VolumeMount mounts a named volume into a container.
type VolumeMount struct {
	Name      string `json:"name"`
	MountPath string `json:"mountPath"`
	ReadOnly  bool   `json:"readOnly,omitempty"`
}

// KeyToPath maps a data key to a relative file path within a volume.
type KeyToPath struct {
	Key  string `json:"key"`
	Path string `json:"path"`
	Mode int32  `json:"mode,omitempty"`
}

// ConfigMapVolumeSource adapts a ConfigMap into a volume.
type ConfigMapVolumeSource struct {
	Name  string      `json:"name,omitempty"`
	Items []KeyToPath `json:"items,omitempty"`
}

// Volume is a named volume in a pod.
type Volume struct {
	Name      string                 `json:"name"`
	ConfigMap *ConfigMapVolumeSource `json:"configMap,omitempty"`
}

// Container is a single container in a pod template.
type Container struct {
	Name         string          `json:"name"`
	Image        string          `json:"image,omitempty"`
	Command      []string        `json:"command,omitempty"`
	Args         []string        `json:"args,omitempty"`
	Env          []KeyValue      `json:"env,omitempty"`
	Ports        []ContainerPort `json:"ports,omitempty"`
	VolumeMounts []VolumeMount   `json:"volumeMounts,omitempty"`
}

// PodSpec describes the containers and volumes of a pod.
type PodSpec struct {
	Containers         []Container `json:"containers,omitempty"`
	Volumes            []Volume    `json:"volumes,omitempty"`
	ServiceAccountName string      `json:"serviceAccountName,omitempty"`
	RestartPolicy      string      `json:"restartPolicy,omitempty"`
}

// PodTemplateSpec is a pod template with its own metadata.
type PodTemplateSpec struct {
	Metadata ObjectMeta `json:"metadata,omitempty"`
	Spec     PodSpec    `json:"spec,omitempty"`
}

// LabelSelector selects objects by label equality.
type LabelSelector struct {
	MatchLabels map[string]string `json:"matchLabels,omitempty"`
}

// DeploymentSpec is the desired state of a Deployment.
type DeploymentSpec struct {
	Replicas int             `json:"replicas,omitempty"`
	Selector LabelSelector   `json:"selector,omitempty"`
	Template PodTemplateSpec `json:"template,omitempty"`
}

// DeploymentStatus is the observed state of a Deployment.
type DeploymentStatus struct {
	Replicas          int `json:"replicas,omitempty"`
	ReadyReplicas     int `json:"readyReplicas,omitempty"`
	AvailableReplicas int `json:"availableReplicas,omitempty"`
}

// Deployment is an apps/v1 Deployment.
type Deployment struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta       `json:"metadata,omitempty"`
	Spec     DeploymentSpec   `json:"spec,omitempty"`
	Status   DeploymentStatus `json:"status,omitempty"`
}

func (d *Deployment) GetObjectMeta() *ObjectMeta { return &d.Metadata }

// StatefulSetSpec is the desired state of a StatefulSet.
type StatefulSetSpec struct {
	Replicas    int             `json:"replicas,omitempty"`
	ServiceName string          `json:"serviceName,omitempty"`
	Selector    LabelSelector   `json:"selector,omitempty"`
	Template    PodTemplateSpec `json:"template,omitempty"`
}

// StatefulSetStatus is the observed state of a StatefulSet.
type StatefulSetStatus struct {
	Replicas      int `json:"replicas,omitempty"`
	ReadyReplicas int `json:"readyReplicas,omitempty"`
}

// StatefulSet is an apps/v1 StatefulSet.
type StatefulSet struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta        `json:"metadata,omitempty"`
	Spec     StatefulSetSpec   `json:"spec,omitempty"`
	Status   StatefulSetStatus `json:"status,omitempty"`
}

func (s *StatefulSet) GetObjectMeta() *ObjectMeta { return &s.Metadata }

// DaemonSetSpec is the desired state of a DaemonSet.
type DaemonSetSpec struct {
	Selector LabelSelector   `json:"selector,omitempty"`
	Template PodTemplateSpec `json:"template,omitempty"`
}

// DaemonSetStatus is the observed state of a DaemonSet.
type DaemonSetStatus struct {
	DesiredNumberScheduled int `json:"desiredNumberScheduled,omitempty"`
	NumberReady            int `json:"numberReady,omitempty"`
}

// DaemonSet is an apps/v1 DaemonSet.
type DaemonSet struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta      `json:"metadata,omitempty"`
	Spec     DaemonSetSpec   `json:"spec,omitempty"`
	Status   DaemonSetStatus `json:"status,omitempty"`
}

func (d *DaemonSet) GetObjectMeta() *ObjectMeta { return &d.Metadata }

// ServicePort describes a port exposed by a Service.
type ServicePort struct {
	Name       string `json:"name,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	Port       int    `json:"port"`
	TargetPort any    `json:"targetPort,omitempty"`
	NodePort   int    `json:"nodePort,omitempty"`
}

// ServiceSpec is the desired state of a Service.
type ServiceSpec struct {
	Selector map[string]string `json:"selector,omitempty"`
	Ports    []ServicePort     `json:"ports,omitempty"`
	Type     string            `json:"type,omitempty"`
}

// Service is a core/v1 Service.
type Service struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta  `json:"metadata,omitempty"`
	Spec     ServiceSpec `json:"spec,omitempty"`
}

func (s *Service) GetObjectMeta() *ObjectMeta { return &s.Metadata }

// ConfigMap is a core/v1 ConfigMap. File payloads go into BinaryData so the
// JSON encoder base64s them.
type ConfigMap struct {
	TypeMeta   `json:",inline"`
	Metadata   ObjectMeta        `json:"metadata,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	BinaryData map[string][]byte `json:"binaryData,omitempty"`
}

func (c *ConfigMap) GetObjectMeta() *ObjectMeta { return &c.Metadata }

// Secret is a core/v1 Secret.
type Secret struct {
	TypeMeta   `json:",inline"`
	Metadata   ObjectMeta        `json:"metadata,omitempty"`
	Type       string            `json:"type,omitempty"`
	Data       map[string][]byte `json:"data,omitempty"`
	StringData map[string]string `json:"stringData,omitempty"`
}

func (s *Secret) GetObjectMeta() *ObjectMeta { return &s.Metadata }

// Namespace is a core/v1 Namespace.
type Namespace struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta      `json:"metadata,omitempty"`
	Status   NamespaceStatus `json:"status,omitempty"`
}

// NamespaceStatus carries the namespace lifecycle phase.
type NamespaceStatus struct {
	Phase string `json:"phase,omitempty"`
}

func (n *Namespace) GetObjectMeta() *ObjectMeta { return &n.Metadata }

// JobSpec is the desired state of a Job.
type JobSpec struct {
	Template     PodTemplateSpec `json:"template,omitempty"`
	Completions  int             `json:"completions,omitempty"`
	Parallelism  int             `json:"parallelism,omitempty"`
	BackoffLimit int             `json:"backoffLimit,omitempty"`
}

// JobStatus is the observed state of a Job.
type JobStatus struct {
	Active    int `json:"active,omitempty"`
	Succeeded int `json:"succeeded,omitempty"`
	Failed    int `json:"failed,omitempty"`
}

// Job is a batch/v1 Job.
type Job struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta `json:"metadata,omitempty"`
	Spec     JobSpec    `json:"spec,omitempty"`
	Status   JobStatus  `json:"status,omitempty"`
}

func (j *Job) GetObjectMeta() *ObjectMeta { return &j.Metadata }

// IngressBackend points an ingress rule at a service port.
type IngressBackend struct {
	Service *IngressServiceBackend `json:"service,omitempty"`
}

// IngressServiceBackend names the backing service and port.
type IngressServiceBackend struct {
	Name string             `json:"name"`
	Port ServiceBackendPort `json:"port,omitempty"`
}

// ServiceBackendPort selects a service port by name or number.
type ServiceBackendPort struct {
	Name   string `json:"name,omitempty"`
	Number int    `json:"number,omitempty"`
}

// HTTPIngressPath routes one path to a backend.
type HTTPIngressPath struct {
	Path     string         `json:"path,omitempty"`
	PathType string         `json:"pathType,omitempty"`
	Backend  IngressBackend `json:"backend"`
}

// HTTPIngressRuleValue groups paths under one host rule.
type HTTPIngressRuleValue struct {
	Paths []HTTPIngressPath `json:"paths"`
}

// IngressRule maps a host to HTTP paths.
type IngressRule struct {
	Host string                `json:"host,omitempty"`
	HTTP *HTTPIngressRuleValue `json:"http,omitempty"`
}

// IngressSpec is the desired state of an Ingress.
type IngressSpec struct {
	Rules []IngressRule `json:"rules,omitempty"`
}

// Ingress is a networking.k8s.io/v1 Ingress.
type Ingress struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta  `json:"metadata,omitempty"`
	Spec     IngressSpec `json:"spec,omitempty"`
}

func (i *Ingress) GetObjectMeta() *ObjectMeta { return &i.Metadata }

// PersistentVolumeSpec is the desired state of a PersistentVolume.
type PersistentVolumeSpec struct {
	Capacity         map[string]string `json:"capacity,omitempty"`
	AccessModes      []string          `json:"accessModes,omitempty"`
	StorageClassName string            `json:"storageClassName,omitempty"`
	HostPath         *HostPathVolume   `json:"hostPath,omitempty"`
}

// HostPathVolume backs a volume with a path on the node.
type HostPathVolume struct {
	Path string `json:"path"`
	Type string `json:"type,omitempty"`
}

// PersistentVolume is a core/v1 PersistentVolume.
type PersistentVolume struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta           `json:"metadata,omitempty"`
	Spec     PersistentVolumeSpec `json:"spec,omitempty"`
}

func (p *PersistentVolume) GetObjectMeta() *ObjectMeta { return &p.Metadata }

// PolicyRule is one RBAC rule.
type PolicyRule struct {
	APIGroups []string `json:"apiGroups,omitempty"`
	Resources []string `json:"resources,omitempty"`
	Verbs     []string `json:"verbs"`
}

// Role is an rbac.authorization.k8s.io/v1 Role.
type Role struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta   `json:"metadata,omitempty"`
	Rules    []PolicyRule `json:"rules,omitempty"`
}

func (r *Role) GetObjectMeta() *ObjectMeta { return &r.Metadata }

// ClusterRole is an rbac.authorization.k8s.io/v1 ClusterRole.
type ClusterRole struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta   `json:"metadata,omitempty"`
	Rules    []PolicyRule `json:"rules,omitempty"`
}

func (r *ClusterRole) GetObjectMeta() *ObjectMeta { return &r.Metadata }

// RoleRef names the role a binding grants.
type RoleRef struct {
	APIGroup string `json:"apiGroup"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
}

// Subject is one grantee of a binding.
type Subject struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// RoleBinding is an rbac.authorization.k8s.io/v1 RoleBinding.
type RoleBinding struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta `json:"metadata,omitempty"`
	Subjects []Subject  `json:"subjects,omitempty"`
	RoleRef  RoleRef    `json:"roleRef"`
}

func (r *RoleBinding) GetObjectMeta() *ObjectMeta { return &r.Metadata }

// ClusterRoleBinding is an rbac.authorization.k8s.io/v1 ClusterRoleBinding.
type ClusterRoleBinding struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta `json:"metadata,omitempty"`
	Subjects []Subject  `json:"subjects,omitempty"`
	RoleRef  RoleRef    `json:"roleRef"`
}

func (r *ClusterRoleBinding) GetObjectMeta() *ObjectMeta { return &r.Metadata }

// ServiceAccount is a core/v1 ServiceAccount.
type ServiceAccount struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta `json:"metadata,omitempty"`
}

func (s *ServiceAccount) GetObjectMeta() *ObjectMeta { return &s.Metadata }

// ObjectReference identifies the object an event is about.
type ObjectReference struct {
	Kind      string `json:"kind,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name,omitempty"`
	UID       string `json:"uid,omitempty"`
}

// Event is a core/v1 Event delivered by the watch stream.
type Event struct {
	TypeMeta       `json:",inline"`
	Metadata       ObjectMeta      `json:"metadata,omitempty"`
	InvolvedObject ObjectReference `json:"involvedObject,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Message        string          `json:"message,omitempty"`
	Type           string          `json:"type,omitempty"`
	Count          int             `json:"count,omitempty"`
}

func (e *Event) GetObjectMeta() *ObjectMeta { return &e.Metadata }

// WatchEvent is one frame of the ?watch=true stream.
type WatchEvent struct {
	Type   string `json:"type"`
	Object Event  `json:"object"`
}
