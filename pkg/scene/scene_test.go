package scene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func width(w float64) *float64 { return &w }

func TestUpdateStartsTransitionOnPositionChange(t *testing.T) {
	g := New()
	t0 := time.Unix(0, 0)

	initial := View{Id: "root", Position: Position{Width: width(100)}}
	g.Update(initial, t0)

	target := View{
		Id:         "root",
		Position:   Position{Width: width(500)},
		Transition: &Transition{Duration: 10 * time.Second, InterpolationKind: InterpolationLinear},
	}
	g.Update(target, t0)

	pos, ok := g.ResolvedPosition("root", t0)
	require.True(t, ok)
	assert.InDelta(t, 100, *pos.Width, 1)

	mid := t0.Add(5 * time.Second)
	pos, ok = g.ResolvedPosition("root", mid)
	require.True(t, ok)
	assert.InDelta(t, 300, *pos.Width, 5)

	end := t0.Add(10 * time.Second)
	pos, ok = g.ResolvedPosition("root", end)
	require.True(t, ok)
	assert.InDelta(t, 500, *pos.Width, 1)
}

func TestUnmatchedNewComponentHasNoTransition(t *testing.T) {
	g := New()
	t0 := time.Unix(0, 0)

	g.Update(View{Id: "a"}, t0)
	g.Update(View{Id: "b", Transition: &Transition{Duration: time.Second}}, t0)

	_, ok := g.ResolvedPosition("b", t0)
	assert.False(t, ok, "a node with no prior tree entry springs to target instantly")
}

func TestShouldInterruptSupersedesRunningTransition(t *testing.T) {
	g := New()
	t0 := time.Unix(0, 0)

	g.Update(View{Id: "root", Position: Position{Width: width(0)}}, t0)
	g.Update(View{
		Id:         "root",
		Position:   Position{Width: width(100)},
		Transition: &Transition{Duration: 10 * time.Second, ShouldInterrupt: true},
	}, t0)

	mid := t0.Add(5 * time.Second)
	g.Update(View{
		Id:         "root",
		Position:   Position{Width: width(200)},
		Transition: &Transition{Duration: 10 * time.Second, ShouldInterrupt: true},
	}, mid)

	pos, ok := g.ResolvedPosition("root", mid)
	require.True(t, ok)
	assert.InDelta(t, 50, *pos.Width, 1, "new transition should start from the interrupted midpoint")
}

func TestNodesDroppedWhenNoLongerPresent(t *testing.T) {
	g := New()
	t0 := time.Unix(0, 0)

	g.Update(View{Id: "a", Position: Position{Width: width(0)}}, t0)
	g.Update(View{
		Id:         "a",
		Position:   Position{Width: width(100)},
		Transition: &Transition{Duration: time.Second},
	}, t0)

	g.Update(View{Id: "other"}, t0)

	_, ok := g.ResolvedPosition("a", t0)
	assert.False(t, ok)
}

func TestBuildIndexSkipsUnidentifiedNodes(t *testing.T) {
	root := View{
		ChildrenList: []Component{
			InputStream{InputId: "cam1"}, // no id, must be skipped
			Image{Id: "logo", ImageId: "logo.png"},
		},
	}
	idx := buildIndex(root)
	assert.Len(t, idx, 1)
	_, ok := idx["logo"]
	assert.True(t, ok)
}
