package drivers

import (
	"context"
	"errors"
	"strings"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/kube"
)

// deploymentDriver manages apps/v1 Deployments. Readiness is event-driven:
// the deploy task counts Created pod events with the deployment's name
// prefix until spec.replicas pods have appeared, with a poll fallback over
// status.availableReplicas.
type deploymentDriver struct {
	base
}

func newDeploymentDriver() *deploymentDriver {
	return &deploymentDriver{base{
		kind: engine.KindDeployment,
		api:  apiPath{prefix: "/apis/apps/v1", resource: "deployments", namespaced: true},
	}}
}

func (d *deploymentDriver) Prepare(c *engine.Component) error {
	dep := &k8api.Deployment{
		TypeMeta: k8api.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
	}
	c.Object = dep

	dep.Metadata.Name = c.Name
	dep.Metadata.Namespace = c.GetNamespace()

	selKey, selValue := c.Selector()
	ensureLabel(&dep.Metadata.Labels, selKey, selValue)
	if dep.Spec.Selector.MatchLabels == nil {
		dep.Spec.Selector.MatchLabels = map[string]string{}
	}
	dep.Spec.Selector.MatchLabels[selKey] = selValue

	if dep.Spec.Template.Metadata.Name == "" {
		dep.Spec.Template.Metadata.Name = c.Name
	}
	ensureLabel(&dep.Spec.Template.Metadata.Labels, selKey, selValue)

	replicas, err := c.GetIntArg("replicas", 1)
	if err != nil {
		return err
	}
	dep.Spec.Replicas = replicas

	container, err := buildMainContainer(c)
	if err != nil {
		return err
	}
	dep.Spec.Template.Spec.Containers = []k8api.Container{container}

	return d.buildImplicitChildren(c, dep)
}

// buildImplicitChildren synthesizes the Service and ConfigMap children a
// deployment commonly needs but the definition did not spell out.
func (d *deploymentDriver) buildImplicitChildren(c *engine.Component, dep *k8api.Deployment) error {
	if len(c.Labels) == 0 {
		c.Labels["app"] = c.Name
	}

	serviceEnabled, err := c.GetBoolArg("service.enabled")
	if err != nil {
		return err
	}

	if serviceEnabled != nil && *serviceEnabled && !c.HasKindAsChild(engine.KindService) {
		log1 := c.Logger()
		log1.Debug().Msg("adding implicit service")

		svcArgs := map[string]string{}
		for _, k := range []string{"service.nodePort", "service.type"} {
			if v, ok := c.Args[k]; ok {
				svcArgs[k] = v
			}
		}

		if _, err := c.AddChild(c.Name+"-svc", engine.KindService, c.Labels, svcArgs, engine.RelationIndependent); err != nil {
			return err
		}
	}

	if fileNames, ok := c.GetArg("config.fromFile"); ok && fileNames != "" {
		log2 := c.Logger()
		log2.Debug().Msg("adding implicit configmap")

		cfArgs := map[string]string{"config.fromFile": fileNames}
		cf, err := c.AddChild(c.Name+"-conf", engine.KindConfigMap, nil, cfArgs, engine.RelationIndependent)
		if err != nil {
			return err
		}

		// The configmap body must be complete before its keys can be
		// mapped into the pod volume.
		if err := cf.EnsurePrepared(); err != nil {
			return err
		}

		cm, ok := cf.Object.(*k8api.ConfigMap)
		if !ok {
			return engine.NewInternalError("configmap child built no configmap body", nil)
		}

		volume := k8api.Volume{
			Name: cm.Metadata.Name,
			ConfigMap: &k8api.ConfigMapVolumeSource{
				Name: cm.Metadata.Name,
			},
		}
		for key := range cm.BinaryData {
			volume.ConfigMap.Items = append(volume.ConfigMap.Items, k8api.KeyToPath{
				Key:  key,
				Path: key,
				Mode: 0o440,
			})
		}

		podSpec := &dep.Spec.Template.Spec
		podSpec.Volumes = append(podSpec.Volumes, volume)

		mount := k8api.VolumeMount{
			Name:      volume.Name,
			MountPath: "/config",
			ReadOnly:  true,
		}
		for i := range podSpec.Containers {
			podSpec.Containers[i].VolumeMounts = append(podSpec.Containers[i].VolumeMounts, mount)
		}
	}

	return nil
}

func (d *deploymentDriver) AddDeploymentTasks(c *engine.Component) error {
	dep, ok := c.Object.(*k8api.Deployment)
	if !ok {
		return engine.NewInternalError("deployment component has no body", nil).WithComponent(c.FQName())
	}

	podsStarted := 0
	namePrefix := c.Name + "-"

	c.NewTask(c.Name, func(t *engine.Task, ev *k8api.Event) {
		if t.State() == engine.TaskReady {
			t.SetState(engine.TaskExecuting, false)
			d.doDeploy(c, func(err error) {
				if err != nil {
					failTask(t, err)
					return
				}
				t.SchedulePoll()
				c.Evaluate()
				c.Cluster().Executor().Post(c.Root().RunTasks)
			})
			t.SetState(engine.TaskWaiting, false)
		}

		monitoring := t.State() == engine.TaskExecuting || t.State() == engine.TaskWaiting
		if monitoring && ev != nil {
			if ev.InvolvedObject.Kind == "Pod" &&
				strings.HasPrefix(ev.InvolvedObject.Name, namePrefix) &&
				ev.Metadata.Namespace == dep.Metadata.Namespace &&
				ev.Reason == "Created" {

				podsStarted++
				log3 := c.Logger()
				log3.Debug().
					Int("pods", podsStarted).
					Int("replicas", dep.Spec.Replicas).
					Msg("pod created")

				if podsStarted >= dep.Spec.Replicas {
					t.SetState(engine.TaskDone, true)
				}
			}
		}

		t.Evaluate()
	})

	return nil
}

// Probe reports ready once the live deployment has its replicas available.
func (d *deploymentDriver) Probe(c *engine.Component, fn func(engine.ObjectState)) bool {
	dep, ok := c.Object.(*k8api.Deployment)
	if !ok {
		return false
	}

	path := d.api.object(dep.Metadata.Namespace, dep.Metadata.Name)
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	go func() {
		var live k8api.Deployment
		err := client.Get(context.Background(), path, &live)
		exec.Post(func() {
			switch {
			case errors.Is(err, kube.ErrNotFound):
				fn(engine.ObjectDontExist)
			case err != nil:
				fn(engine.ObjectInit)
			case live.Status.AvailableReplicas >= dep.Spec.Replicas:
				fn(engine.ObjectReady)
			default:
				fn(engine.ObjectInit)
			}
		})
	}()
	return true
}

// ensureLabel sets key=value in a possibly-nil label map without clobbering
// an existing value.
func ensureLabel(labels *map[string]string, key, value string) {
	if *labels == nil {
		*labels = map[string]string{}
	}
	if _, ok := (*labels)[key]; !ok {
		(*labels)[key] = value
	}
}

// buildMainContainer assembles the single container for workload kinds from
// the image/port/protocol and pod.* arguments.
func buildMainContainer(c *engine.Component) (k8api.Container, error) {
	container := k8api.Container{
		Name:  c.Name,
		Image: c.GetArgOr("image", c.Name),
	}

	if port, ok := c.GetArg("port"); ok && port != "" {
		n, err := c.GetIntArg("port", 0)
		if err != nil {
			return container, err
		}
		p := k8api.ContainerPort{
			Name:          "default",
			ContainerPort: n,
		}
		if proto, ok := c.GetArg("protocol"); ok {
			p.Protocol = proto
		}
		container.Ports = append(container.Ports, p)
	}

	container.Args = c.GetArgAsStringList("pod.args")
	container.Env = c.GetArgAsEnvList("pod.env")

	return container, nil
}
