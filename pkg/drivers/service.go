package drivers

import (
	"fmt"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

// serviceDriver manages core/v1 Services. Services emit no useful events;
// the deploy task completes on HTTP success.
type serviceDriver struct {
	base
}

func newServiceDriver() *serviceDriver {
	return &serviceDriver{base{
		kind: engine.KindService,
		api:  apiPath{prefix: "/api/v1", resource: "services", namespaced: true},
	}}
}

func (d *serviceDriver) Prepare(c *engine.Component) error {
	svc := &k8api.Service{
		TypeMeta: k8api.TypeMeta{APIVersion: "v1", Kind: "Service"},
	}
	c.Object = svc

	svc.Metadata.Name = c.Name
	svc.Metadata.Namespace = c.GetNamespace()

	selKey, selValue := c.Selector()
	ensureLabel(&svc.Metadata.Labels, selKey, selValue)
	if svc.Spec.Selector == nil {
		svc.Spec.Selector = map[string]string{}
	}
	if _, ok := svc.Spec.Selector[selKey]; !ok {
		svc.Spec.Selector[selKey] = selValue
	}

	svc.Spec.Type = c.GetArgOr("service.type", svc.Spec.Type)
	if svc.Spec.Type == "" {
		if _, ok := c.GetArg("service.nodePort"); ok {
			svc.Spec.Type = "NodePort"
		}
	}

	return d.derivePorts(c, svc)
}

// derivePorts copies the known ports from the parent workload's containers
// onto the service. The first port may be remapped by the port argument and
// receive the configured node port.
func (d *serviceDriver) derivePorts(c *engine.Component, svc *k8api.Service) error {
	containers := parentContainers(c)
	if len(svc.Spec.Ports) > 0 || containers == nil {
		return nil
	}

	cnt := 0
	for _, container := range containers {
		for _, dp := range container.Ports {
			cnt++
			sport := k8api.ServicePort{
				Protocol: dp.Protocol,
			}

			extPort := dp.HostPort
			if cnt == 1 && extPort <= 0 {
				n, err := c.GetIntArg("port", dp.ContainerPort)
				if err != nil {
					return err
				}
				extPort = n
			}
			if extPort <= 0 {
				extPort = dp.ContainerPort
			}
			sport.Port = extPort

			if dp.Name != "" {
				sport.TargetPort = dp.Name
				sport.Name = dp.Name
			} else {
				sport.TargetPort = dp.ContainerPort
				sport.Name = fmt.Sprintf("sport-%d", cnt)
			}

			if cnt == 1 {
				nodePort, err := c.GetIntArg("service.nodePort", 0)
				if err != nil {
					return err
				}
				sport.NodePort = nodePort
			}

			log := c.Logger()
			log.Trace().Str("port", sport.Name).Msg("added service port")
			svc.Spec.Ports = append(svc.Spec.Ports, sport)
		}
	}

	return nil
}

// parentContainers returns the pod containers of the parent workload, when
// the parent is a kind that has them.
func parentContainers(c *engine.Component) []k8api.Container {
	parent := c.Parent()
	if parent == nil {
		return nil
	}
	switch obj := parent.Object.(type) {
	case *k8api.Deployment:
		return obj.Spec.Template.Spec.Containers
	case *k8api.StatefulSet:
		return obj.Spec.Template.Spec.Containers
	case *k8api.DaemonSet:
		return obj.Spec.Template.Spec.Containers
	default:
		return nil
	}
}
