/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package catalog

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
)

const envTag = "!Env"

var intPattern = regexp.MustCompile(`^-?\d+$`)

// Catalog is the loaded, validated set of service configs for one CMR
// environment. The slice is private; Services and Lookup hand out deep
// copies so no consumer can mutate the loaded state.
type Catalog struct {
	endpoint string
	services []ServiceConfig
}

// rawService wraps ServiceConfig with the load-time-only enabled flag.
type rawService struct {
	ServiceConfig `yaml:",inline"`
	Enabled       *enabledFlag `yaml:"enabled"`
}

// enabledFlag accepts a YAML bool or the strings "true"/"false" (the !Env
// tag substitutes strings). Absent means enabled.
type enabledFlag bool

func (e *enabledFlag) UnmarshalYAML(node *yaml.Node) error {
	switch node.Value {
	case "", "true", "True", "TRUE":
		*e = true
	case "false", "False", "FALSE":
		*e = false
	default:
		return fmt.Errorf("invalid enabled value %q", node.Value)
	}
	return nil
}

// Load reads the catalog file and returns the services for cmrEndpoint.
func Load(path, cmrEndpoint string, maxGranuleLimit int) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, harmonyerrors.NewServerError(fmt.Sprintf("failed to read service catalog: %s", err.Error()))
	}
	return Parse(data, cmrEndpoint, maxGranuleLimit)
}

// Parse decodes a catalog document, resolves !Env tags, drops disabled
// entries, and validates the remainder. Validation failures are fatal.
func Parse(data []byte, cmrEndpoint string, maxGranuleLimit int) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, harmonyerrors.NewServerError(fmt.Sprintf("failed to parse service catalog: %s", err.Error()))
	}
	resolveEnvTags(&root)

	document := map[string][]rawService{}
	if err := root.Decode(&document); err != nil {
		return nil, harmonyerrors.NewServerError(fmt.Sprintf("failed to decode service catalog: %s", err.Error()))
	}
	entries, ok := document[cmrEndpoint]
	if !ok {
		return nil, harmonyerrors.NewServerError(fmt.Sprintf("no services are configured for CMR environment %q", cmrEndpoint))
	}

	c := &Catalog{endpoint: cmrEndpoint}
	for _, raw := range entries {
		if raw.Enabled != nil && !bool(*raw.Enabled) {
			continue
		}
		if err := validateService(&raw.ServiceConfig, maxGranuleLimit); err != nil {
			return nil, err
		}
		c.services = append(c.services, raw.ServiceConfig)
	}
	klog.Infof("loaded %d services for %s", len(c.services), cmrEndpoint)
	return c, nil
}

// resolveEnvTags rewrites every !Env scalar in place: the value becomes the
// named environment variable, digit strings are retagged as integers so
// numeric fields decode cleanly, and unset variables are retagged as null so
// typed fields read them as absent instead of failing the decode.
func resolveEnvTags(node *yaml.Node) {
	if node == nil {
		return
	}
	if node.Tag == envTag {
		value := os.Getenv(node.Value)
		node.Value = value
		switch {
		case value == "":
			node.Tag = "!!null"
		case intPattern.MatchString(value):
			node.Tag = "!!int"
		default:
			node.Tag = "!!str"
		}
	}
	for _, child := range node.Content {
		resolveEnvTags(child)
	}
}

func validateService(svc *ServiceConfig, maxGranuleLimit int) error {
	if svc.Name == "" {
		return harmonyerrors.NewServerError("a service config entry is missing its name")
	}
	if svc.BatchSize != nil {
		if *svc.BatchSize < 1 {
			return harmonyerrors.NewServerError(
				fmt.Sprintf("service %s batch_size must be a positive integer, got %d", svc.Name, *svc.BatchSize))
		}
		if *svc.BatchSize > maxGranuleLimit {
			klog.Warningf("service %s batch_size %d exceeds the system granule limit %d",
				svc.Name, *svc.BatchSize, maxGranuleLimit)
		}
	}
	if svc.Type != TypeNoOp && svc.UmmS == "" {
		return harmonyerrors.NewServerError(
			fmt.Sprintf("service %s must have exactly one umm_s record", svc.Name))
	}
	for _, coll := range svc.Collections {
		if coll.GranuleLimit != nil && *coll.GranuleLimit < 1 {
			return harmonyerrors.NewServerError(
				fmt.Sprintf("service %s collection %s granule_limit must be a positive integer", svc.Name, coll.ID))
		}
	}
	return nil
}

// Endpoint returns the CMR environment this catalog was loaded for.
func (c *Catalog) Endpoint() string {
	return c.endpoint
}

// Services returns deep copies of all enabled services in catalog order.
func (c *Catalog) Services() []ServiceConfig {
	result := make([]ServiceConfig, 0, len(c.services))
	for i := range c.services {
		result = append(result, c.services[i].Clone())
	}
	return result
}

// Lookup returns a copy of the named service.
func (c *Catalog) Lookup(name string) (ServiceConfig, bool) {
	for i := range c.services {
		if c.services[i].Name == name {
			return c.services[i].Clone(), true
		}
	}
	return ServiceConfig{}, false
}
