// Package view holds the component tree an application hands to the renderer
// and its wire encoding.
package view

import "fmt"

// Color is an 8-bit RGB triple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// RGB builds a Color from its channels.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Common colors.
var (
	Black = RGB(0, 0, 0)
	White = RGB(255, 255, 255)
)

// String returns the color in #rrggbb form.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Component is a node in the view tree. Children are drawn in slice order.
//
// A component is owned by its parent; the root is owned by the application,
// which may mutate the tree between dispatch cycles. Nothing in this module
// mutates a Component.
type Component struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	Background  Color `json:"background_color"`
	Foreground  Color `json:"foreground_color"`
	BorderColor Color `json:"border_color"`
	BorderWidth int   `json:"border_width"`

	Text     string `json:"text"`
	FontSize *int   `json:"font_size,omitempty"`

	Children []*Component `json:"children"`
}

// NewComponent returns a component at the given bounds with black text on a
// white background and a one pixel black border.
func NewComponent(x, y, width, height int) *Component {
	return &Component{
		X:           x,
		Y:           y,
		Width:       width,
		Height:      height,
		Background:  White,
		Foreground:  Black,
		BorderColor: Black,
		BorderWidth: 1,
	}
}

// FontSize returns a pointer suitable for Component.FontSize.
func FontSize(size int) *int {
	return &size
}

// AddChild appends child to the end of c's children.
func (c *Component) AddChild(child *Component) {
	c.Children = append(c.Children, child)
}

// RemoveChild removes the first occurrence of child from c's children and
// reports whether it was present.
func (c *Component) RemoveChild(child *Component) bool {
	for i, existing := range c.Children {
		if existing == child {
			c.Children = append(c.Children[:i], c.Children[i+1:]...)
			return true
		}
	}

	return false
}

// Walk visits c and its descendants depth-first, parents before children.
// Returning false from fn stops the walk below that node.
func (c *Component) Walk(fn func(depth int, node *Component) bool) {
	c.walk(0, fn)
}

func (c *Component) walk(depth int, fn func(int, *Component) bool) {
	if c == nil || !fn(depth, c) {
		return
	}
	for _, child := range c.Children {
		child.walk(depth+1, fn)
	}
}
