package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/scene"
)

func TestComputeLayoutRowSplitsViewportEvenly(t *testing.T) {
	root := scene.View{
		Id:        "root",
		Direction: scene.DirectionRow,
		ChildrenList: []scene.Component{
			scene.InputStream{Id: "a"},
			scene.InputStream{Id: "b"},
		},
	}

	layout := ComputeLayout(root, Rect{Width: 1000, Height: 500}, nil, time.Time{})
	require.Len(t, layout.Layers, 3) // root + 2 children

	var children []Layer
	for _, l := range layout.Layers {
		if l.NodeId == "a" || l.NodeId == "b" {
			children = append(children, l)
		}
	}
	require.Len(t, children, 2)
	assert.InDelta(t, 500, children[0].Rect.Width, 0.01)
	assert.InDelta(t, 500, children[1].Rect.Width, 0.01)
	assert.InDelta(t, 500, children[1].Rect.X, 0.01)
}

func TestComputeLayoutTilesFillsGrid(t *testing.T) {
	children := make([]scene.Component, 4)
	for i := range children {
		children[i] = scene.InputStream{}
	}
	root := scene.Tiles{Id: "grid", ChildrenList: children}

	layout := ComputeLayout(root, Rect{Width: 800, Height: 400}, nil, time.Time{})
	assert.Len(t, layout.Layers, 5) // grid + 4 tiles
}
