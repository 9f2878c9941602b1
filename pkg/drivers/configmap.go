package drivers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

// configMapDriver manages core/v1 ConfigMaps. The config.fromFile argument
// loads files into binaryData, keyed by basename.
type configMapDriver struct {
	base
}

func newConfigMapDriver() *configMapDriver {
	return &configMapDriver{base{
		kind: engine.KindConfigMap,
		api:  apiPath{prefix: "/api/v1", resource: "configmaps", namespaced: true},
	}}
}

func (d *configMapDriver) Prepare(c *engine.Component) error {
	cm := &k8api.ConfigMap{
		TypeMeta: k8api.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
	}
	c.Object = cm

	cm.Metadata.Name = c.Name
	cm.Metadata.Namespace = c.GetNamespace()
	for k, v := range c.Labels {
		ensureLabel(&cm.Metadata.Labels, k, v)
	}

	for _, path := range c.GetArgAsStringList("config.fromFile") {
		data, err := os.ReadFile(path)
		if err != nil {
			return engine.NewConfigError(
				fmt.Sprintf("config.fromFile: cannot read %s", path), err).
				WithComponent(c.FQName())
		}
		if cm.BinaryData == nil {
			cm.BinaryData = map[string][]byte{}
		}
		cm.BinaryData[filepath.Base(path)] = data
	}

	return nil
}
