package view

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Component {
	root := NewComponent(190, 10, 200, 200)
	root.Text = "Press 'a' to add an item"
	root.FontSize = FontSize(50)
	root.BorderWidth = 0

	first := NewComponent(10, 30, 150, 50)
	first.Background = RGB(12, 200, 7)
	first.BorderWidth = 3

	second := NewComponent(10, 60, 150, 50)
	second.AddChild(NewComponent(1, 2, 3, 4))

	root.AddChild(first)
	root.AddChild(second)

	return root
}

func TestSerializeWireShape(t *testing.T) {
	leaf := &Component{
		X: 1, Y: 2, Width: 3, Height: 4,
		Background:  RGB(255, 0, 0),
		Foreground:  RGB(0, 255, 0),
		BorderColor: RGB(0, 0, 255),
		BorderWidth: 2,
		Text:        "hi",
	}

	data, err := Serialize(leaf)
	require.NoError(t, err)

	expected := `{"components":[{"x":1,"y":2,"width":3,"height":4,` +
		`"background_color":{"r":255,"g":0,"b":0},` +
		`"foreground_color":{"r":0,"g":255,"b":0},` +
		`"border_color":{"r":0,"g":0,"b":255},` +
		`"border_width":2,"text":"hi","children":[]}]}`
	assert.JSONEq(t, expected, string(data))
	assert.NotContains(t, string(data), "font_size")
}

func TestSerializeFontSize(t *testing.T) {
	c := NewComponent(0, 0, 1, 1)
	c.FontSize = FontSize(20)

	data, err := Serialize(c)
	require.NoError(t, err)

	var decoded map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 20, decoded["components"][0]["font_size"])
}

func TestSerializeEmptyAndNilRoots(t *testing.T) {
	data, err := Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, `{"components":[]}`, string(data))

	data, err = Serialize(nil, NewComponent(0, 0, 1, 1), nil)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Len(t, parsed, 1)
}

func TestSerializeDeterministic(t *testing.T) {
	a, err := Serialize(sampleTree())
	require.NoError(t, err)
	b, err := Serialize(sampleTree())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRoundTrip(t *testing.T) {
	original := sampleTree()

	data, err := Serialize(original)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed, 1)

	assertSameTree(t, original, parsed[0])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"components":[{"x":"nope"}]}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestChildManagement(t *testing.T) {
	parent := NewComponent(0, 0, 10, 10)
	a := NewComponent(0, 0, 1, 1)
	b := NewComponent(0, 0, 2, 2)
	c := NewComponent(0, 0, 3, 3)

	parent.AddChild(a)
	parent.AddChild(b)
	parent.AddChild(c)

	assert.True(t, parent.RemoveChild(b))
	assert.False(t, parent.RemoveChild(b))
	assert.Equal(t, []*Component{a, c}, parent.Children)
}

func TestWalkOrder(t *testing.T) {
	root := sampleTree()

	var widths []int
	var depths []int
	root.Walk(func(depth int, node *Component) bool {
		widths = append(widths, node.Width)
		depths = append(depths, depth)
		return true
	})

	assert.Equal(t, []int{200, 150, 150, 3}, widths)
	assert.Equal(t, []int{0, 1, 1, 2}, depths)
}

func TestColorString(t *testing.T) {
	assert.Equal(t, "#ff0a00", RGB(255, 10, 0).String())
}

// assertSameTree compares field values, child order and nesting depth.
func assertSameTree(t *testing.T, want, got *Component) {
	t.Helper()

	assert.Equal(t, want.X, got.X)
	assert.Equal(t, want.Y, got.Y)
	assert.Equal(t, want.Width, got.Width)
	assert.Equal(t, want.Height, got.Height)
	assert.Equal(t, want.Background, got.Background)
	assert.Equal(t, want.Foreground, got.Foreground)
	assert.Equal(t, want.BorderColor, got.BorderColor)
	assert.Equal(t, want.BorderWidth, got.BorderWidth)
	assert.Equal(t, want.Text, got.Text)
	assert.Equal(t, want.FontSize, got.FontSize)

	require.Len(t, got.Children, len(want.Children))
	for i := range want.Children {
		assertSameTree(t, want.Children[i], got.Children[i])
	}
}
