package auth

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CapabilityKey identifies a feature or admin module. It is used both for navigation
// entries and for protected-route gating.
type CapabilityKey string

// Known capability keys. The embedded catalog is the source of truth for their routes.
const (
	CapabilityAgenticRAG          CapabilityKey = "AGENTIC_RAG"
	CapabilityNormalChat          CapabilityKey = "NORMAL_CHAT"
	CapabilityGuardrailsInsights  CapabilityKey = "GUARDRAILS_INSIGHTS"
	CapabilityGuardrailsConfig    CapabilityKey = "GUARDRAILS_CONFIGURATION"
	CapabilityUserManagement      CapabilityKey = "USER_MANAGEMENT"
	CapabilityRoleManagement      CapabilityKey = "ROLE_MANAGEMENT"
	CapabilityComponentManagement CapabilityKey = "COMPONENT_MANAGEMENT"
)

// CapabilityKind separates pluggable feature views from base admin views.
type CapabilityKind string

const (
	CapabilityKindFeature CapabilityKind = "feature"
	CapabilityKindAdmin   CapabilityKind = "admin"
)

// Capability binds a key to its dashboard sub-path.
type Capability struct {
	Key   CapabilityKey  `yaml:"key"`
	Path  string         `yaml:"path"`
	Title string         `yaml:"title"`
	Kind  CapabilityKind `yaml:"kind"`
}

// Route returns the absolute dashboard route for the capability.
func (c Capability) Route() string { return "/dashboard/" + c.Path }

// CapabilityCatalog is the versioned enumeration of capability keys.
type CapabilityCatalog struct {
	Version      int          `yaml:"version"`
	Capabilities []Capability `yaml:"capabilities"`

	byKey map[CapabilityKey]Capability
}

//go:embed capabilities.yaml
var defaultCatalogYAML []byte

// DefaultCatalog parses the embedded catalog. It panics only if the embedded file is broken,
// which is a build defect rather than a runtime condition.
func DefaultCatalog() *CapabilityCatalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded capability catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes and validates a YAML capability catalog.
func ParseCatalog(data []byte) (*CapabilityCatalog, error) {
	var c CapabilityCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if c.Version < 1 {
		return nil, errors.New("catalog version must be >= 1")
	}

	c.byKey = make(map[CapabilityKey]Capability, len(c.Capabilities))
	paths := make(map[string]CapabilityKey, len(c.Capabilities))
	for i, capability := range c.Capabilities {
		capability.Path = strings.Trim(capability.Path, "/")
		if capability.Key == "" || capability.Path == "" {
			return nil, fmt.Errorf("capability %d: key and path are required", i)
		}
		if _, dup := c.byKey[capability.Key]; dup {
			return nil, fmt.Errorf("duplicate capability key %q", capability.Key)
		}
		if other, dup := paths[capability.Path]; dup {
			return nil, fmt.Errorf("path %q used by both %q and %q", capability.Path, other, capability.Key)
		}
		if capability.Kind == "" {
			capability.Kind = CapabilityKindFeature
		}
		c.Capabilities[i] = capability
		c.byKey[capability.Key] = capability
		paths[capability.Path] = capability.Key
	}
	return &c, nil
}

// Lookup returns the capability for key. Unknown keys report false.
func (c *CapabilityCatalog) Lookup(key string) (Capability, bool) {
	capability, ok := c.byKey[CapabilityKey(key)]
	return capability, ok
}

// ByPath finds the capability registered under a dashboard sub-path.
func (c *CapabilityCatalog) ByPath(path string) (Capability, bool) {
	path = strings.Trim(path, "/")
	for _, capability := range c.Capabilities {
		if capability.Path == path {
			return capability, true
		}
	}
	return Capability{}, false
}
