package nodes

import (
	"sort"

	"github.com/PratikKhaire/100x-n8n/internal/engine"
	"github.com/PratikKhaire/100x-n8n/internal/nodes/http"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// NodeCategory groups node types in the catalog
type NodeCategory string

const (
	CategoryCore        NodeCategory = "core"
	CategoryIntegration NodeCategory = "integration"
)

// ParameterType represents different types of node parameters
type ParameterType string

const (
	ParameterTypeString  ParameterType = "string"
	ParameterTypeOptions ParameterType = "options"
	ParameterTypeJSON    ParameterType = "json"
)

// Parameter describes one key of a node's data payload
type Parameter struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"displayName"`
	Type        ParameterType `json:"type"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Default     interface{}   `json:"default,omitempty"`
	Options     []string      `json:"options,omitempty"`
}

// NodeDefinition describes a registered node type for clients
type NodeDefinition struct {
	Type        string       `json:"type"`
	DisplayName string       `json:"displayName"`
	Description string       `json:"description"`
	Category    NodeCategory `json:"category"`
	Parameters  []Parameter  `json:"parameters"`
}

// Config carries executor settings for the built-in nodes
type Config struct {
	HTTP http.Config
}

// Catalog is the executor registry together with the definitions of the
// types it holds.
type Catalog struct {
	registry    *engine.Registry
	definitions map[string]*NodeDefinition
	logger      logger.Logger
}

// NewCatalog builds the catalog of built-in node types: start, httpRequest
// and end.
func NewCatalog(log logger.Logger, config Config) (*Catalog, error) {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Catalog{
		registry:    engine.NewRegistry(),
		definitions: make(map[string]*NodeDefinition),
		logger:      log,
	}
	if err := c.registerCoreNodes(config); err != nil {
		return nil, err
	}
	return c, nil
}

// Register adds a node type with its definition.
func (c *Catalog) Register(def *NodeDefinition, exec engine.NodeExecutor) error {
	if err := c.registry.Register(def.Type, exec); err != nil {
		return err
	}
	c.definitions[def.Type] = def
	c.logger.Debug("Registered node type", "type", def.Type, "category", def.Category)
	return nil
}

// Registry returns the executor registry to hand to the engine.
func (c *Catalog) Registry() *engine.Registry {
	return c.registry
}

// Definitions lists the node definitions sorted by type tag.
func (c *Catalog) Definitions() []*NodeDefinition {
	defs := make([]*NodeDefinition, 0, len(c.definitions))
	for _, def := range c.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Type < defs[j].Type })
	return defs
}

// Definition returns the definition of nodeType.
func (c *Catalog) Definition(nodeType string) (*NodeDefinition, bool) {
	def, ok := c.definitions[nodeType]
	return def, ok
}

func (c *Catalog) registerCoreNodes(config Config) error {
	if err := c.Register(&NodeDefinition{
		Type:        StartNodeType,
		DisplayName: "Start",
		Description: "Entry point of a workflow; passes the initial value on unchanged",
		Category:    CategoryCore,
		Parameters:  []Parameter{},
	}, NewStartExecutor(c.logger)); err != nil {
		return err
	}

	if err := c.Register(&NodeDefinition{
		Type:        http.NodeType,
		DisplayName: "HTTP Request",
		Description: "Makes an HTTP request and returns the response body",
		Category:    CategoryIntegration,
		Parameters: []Parameter{
			{
				Name:        "method",
				DisplayName: "Method",
				Type:        ParameterTypeOptions,
				Default:     "GET",
				Options:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			{
				Name:        "url",
				DisplayName: "URL",
				Type:        ParameterTypeString,
				Required:    true,
			},
			{
				Name:        "body",
				DisplayName: "Body",
				Type:        ParameterTypeJSON,
				Description: "JSON-encoded request body; empty means {}",
			},
		},
	}, http.New(c.logger, config.HTTP)); err != nil {
		return err
	}

	return c.Register(&NodeDefinition{
		Type:        EndNodeType,
		DisplayName: "End",
		Description: "Terminal node; its input becomes the workflow result",
		Category:    CategoryCore,
		Parameters:  []Parameter{},
	}, NewEndExecutor(c.logger))
}
