//go:build property

package view

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildTree turns a list of integers into a tree: each value becomes a node
// whose parent is chosen from the nodes created before it.
func buildTree(values []int, text string) *Component {
	root := NewComponent(0, 0, 1, 1)
	root.Text = text
	nodes := []*Component{root}

	for i, v := range values {
		node := NewComponent(v, -v, v%97, i)
		node.Background = RGB(uint8(v), uint8(v>>8), uint8(i))
		node.BorderWidth = v % 5
		if v%3 == 0 {
			node.FontSize = FontSize(v % 64)
		}
		parent := nodes[(v*31+i)%len(nodes)]
		parent.AddChild(node)
		nodes = append(nodes, node)
	}

	return root
}

func TestViewRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("parse after serialize re-serializes identically", prop.ForAll(
		func(values []int, text string) bool {
			tree := buildTree(values, text)

			first, err := Serialize(tree)
			if err != nil {
				return false
			}
			parsed, err := Parse(first)
			if err != nil || len(parsed) != 1 {
				return false
			}
			second, err := Serialize(parsed...)
			if err != nil {
				return false
			}

			return bytes.Equal(first, second)
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
		gen.AnyString(),
	))

	properties.Property("walk visits every node once", prop.ForAll(
		func(values []int) bool {
			tree := buildTree(values, "")

			count := 0
			tree.Walk(func(int, *Component) bool {
				count++
				return true
			})

			return count == len(values)+1
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
