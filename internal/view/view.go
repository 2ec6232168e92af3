package view

import (
	"encoding/json"
	"fmt"
)

// Frame is one outbound view update.
type Frame struct {
	Components []*Component `json:"components"`
}

// MarshalJSON encodes c with an empty children array instead of null so
// renderers can iterate without a nil check.
func (c *Component) MarshalJSON() ([]byte, error) {
	type plain Component

	children := c.Children
	if children == nil {
		children = []*Component{}
	}

	return json.Marshal(struct {
		*plain
		Children []*Component `json:"children"`
	}{
		plain:    (*plain)(c),
		Children: children,
	})
}

// Serialize encodes the given roots as a single view update. Field order and
// child order are fixed, so equal trees always produce equal bytes.
func Serialize(roots ...*Component) ([]byte, error) {
	frame := Frame{Components: make([]*Component, 0, len(roots))}
	for _, root := range roots {
		if root != nil {
			frame.Components = append(frame.Components, root)
		}
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("serialize view: %w", err)
	}

	return data, nil
}

// Parse decodes a view update produced by Serialize.
func Parse(data []byte) ([]*Component, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("parse view: %w", err)
	}

	return frame.Components, nil
}
