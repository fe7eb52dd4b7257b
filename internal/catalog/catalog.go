// Package catalog provides the static registry of operations the agent may
// request. Every tool carries an explicit danger flag set at registration;
// nothing is re-derived from the tool name at call time.
package catalog

import (
	"errors"
	"fmt"
)

// ErrToolNotFound is returned when an operation name is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Capability groups used for executor dispatch.
const (
	GroupKubernetes = "kubernetes"
	GroupSystem     = "system"
	GroupSecurity   = "security"
	GroupInsights   = "insights"
	GroupPredictive = "predictive"
)

// Tool describes one callable operation: its name, a description for the
// LLM, a JSON Schema for its parameters, the capability group it dispatches
// to, and whether it is dangerous (destructive or hard to reverse).
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Group       string
	Dangerous   bool
}

// Catalog is the read-only tool registry. It is built at process start and
// safe to share across concurrent agent turns.
type Catalog struct {
	tools map[string]Tool
	order []string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the catalog. Duplicate names are rejected.
func (c *Catalog) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if _, exists := c.tools[t.Name]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name)
	}
	c.tools[t.Name] = t
	c.order = append(c.order, t.Name)
	return nil
}

// Get returns a tool by name.
func (c *Catalog) Get(name string) (Tool, error) {
	t, ok := c.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// IsDangerous reports whether the named tool is classified dangerous.
func (c *Catalog) IsDangerous(name string) (bool, error) {
	t, err := c.Get(name)
	if err != nil {
		return false, err
	}
	return t.Dangerous, nil
}

// List returns all tools in registration order.
func (c *Catalog) List() []Tool {
	result := make([]Tool, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.tools[name])
	}
	return result
}

// Definitions returns tool definitions in OpenAI function-calling format.
func (c *Catalog) Definitions() []map[string]any {
	result := make([]map[string]any, 0, len(c.order))
	for _, name := range c.order {
		t := c.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
