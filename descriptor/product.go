package descriptor

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const productsKey = "products"

// Well known product axes.
const (
	AxisTestCase    = "test_case"
	AxisEnvironment = "environment"
	AxisScope       = "scope"
	AxisPlatforms   = "platforms"
)

// Axis is one dimension of a product group, e.g. environment: [dev, lts].
type Axis struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// ProductGroup declares axes whose cross product, multiplied with the combinations of the
// nested groups, yields the concrete runs.
type ProductGroup struct {
	Axes     []Axis         `json:"axes"`
	Products []ProductGroup `json:"products,omitempty"`
}

// Axis returns the values of the named axis of this group.
func (g ProductGroup) Axis(name string) ([]string, bool) {
	for _, axis := range g.Axes {
		if axis.Name == name {
			return axis.Values, true
		}
	}
	return nil, false
}

// UnmarshalYAML keeps the axes in document order; every key besides products is an axis.
// A key may appear only once per group.
func (g *ProductGroup) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: product group must be a mapping", value.Line)
	}

	var group ProductGroup
	seen := map[string]bool{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valueNode := value.Content[i], value.Content[i+1]
		key := keyNode.Value

		if seen[key] {
			return fmt.Errorf("line %d: duplicate key %s", keyNode.Line, key)
		}
		seen[key] = true

		if key == productsKey {
			if err := valueNode.Decode(&group.Products); err != nil {
				return err
			}
			continue
		}

		values, err := axisValues(valueNode)
		if err != nil {
			return fmt.Errorf("line %d: axis %s: %w", keyNode.Line, key, err)
		}
		group.Axes = append(group.Axes, Axis{Name: key, Values: values})
	}

	*g = group
	return nil
}

func axisValues(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: values must be scalars", item.Line)
			}
			values = append(values, item.Value)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("line %d: expected a list of values", node.Line)
	}
}
