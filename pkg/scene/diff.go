package scene

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/ids"
)

// positionAndTransition extracts the Position/Transition pair carried by
// the two component kinds that declare them (View, Rescaler); every other
// kind has no transition-bearing layout state of its own.
func positionAndTransition(c Component) (Position, *Transition, bool) {
	switch v := c.(type) {
	case View:
		return v.Position, v.Transition, true
	case Rescaler:
		return v.Position, v.Transition, true
	default:
		return Position{}, nil, false
	}
}

// activeTransition tracks one in-flight interpolation for a ComponentId.
type activeTransition struct {
	from, to        Position
	start           time.Time
	duration        time.Duration
	kind            InterpolationKind
	bezierX1, bezierY1, bezierX2, bezierY2 float64
	shouldInterrupt bool
	// queued holds a transition that arrived while this one was running
	// and declared ShouldInterrupt=false; it starts once this completes.
	queued *activeTransition
}

// Graph holds the previous scene tree's identity index and any
// transitions still in flight, across calls to Update.
type Graph struct {
	prevIndex map[ids.ComponentId]Component
	active    map[ids.ComponentId]*activeTransition
}

// New constructs an empty scene graph (no previous tree, no transitions).
func New() *Graph {
	return &Graph{
		prevIndex: map[ids.ComponentId]Component{},
		active:    map[ids.ComponentId]*activeTransition{},
	}
}

// buildIndex flattens a tree into an id->node table, per spec §3's "flat
// id→node table built during update"; unidentified nodes are omitted since
// they have no diffing/lookup identity.
func buildIndex(root Component) map[ids.ComponentId]Component {
	index := map[ids.ComponentId]Component{}
	if root == nil {
		return index
	}
	var walk func(c Component)
	walk = func(c Component) {
		if c.ID() != "" {
			index[c.ID()] = c
		}
		for _, child := range c.Children() {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	return index
}

// Update diffs root against the previously applied tree (spec §4.6): for
// every identified node also present in the previous tree, if its
// Position differs and it declares a Transition, a new interpolation
// starts (or supersedes/queues behind a running one per ShouldInterrupt).
// Unmatched new nodes take their target state immediately; unmatched old
// nodes are simply dropped from the index.
func (g *Graph) Update(root Component, now time.Time) {
	newIndex := buildIndex(root)

	for id, newNode := range newIndex {
		oldNode, existed := g.prevIndex[id]
		if !existed {
			continue
		}

		newPos, transition, ok := positionAndTransition(newNode)
		if !ok || transition == nil {
			continue
		}
		oldPos, _, _ := positionAndTransition(oldNode)
		if positionsEqual(oldPos, newPos) {
			continue
		}

		from := oldPos
		if running, hasRunning := g.active[id]; hasRunning {
			from = g.interpolatePosition(running, now)
		}

		next := &activeTransition{
			from:            from,
			to:              newPos,
			start:           now,
			duration:        transition.Duration,
			kind:            transition.InterpolationKind,
			bezierX1:        transition.BezierX1,
			bezierY1:        transition.BezierY1,
			bezierX2:        transition.BezierX2,
			bezierY2:        transition.BezierY2,
			shouldInterrupt: transition.ShouldInterrupt,
		}

		if running, hasRunning := g.active[id]; hasRunning && !transition.ShouldInterrupt {
			running.queued = next
			continue
		}
		g.active[id] = next
	}

	// Drop transitions for nodes no longer present.
	for id := range g.active {
		if _, stillPresent := newIndex[id]; !stillPresent {
			delete(g.active, id)
		}
	}

	g.prevIndex = newIndex
}

// ResolvedPosition returns the Position a node with the given id should
// render at now, accounting for any active transition; the second return
// is false if there is no in-flight transition for id.
func (g *Graph) ResolvedPosition(id ids.ComponentId, now time.Time) (Position, bool) {
	t, ok := g.active[id]
	if !ok {
		return Position{}, false
	}
	pos := g.interpolatePosition(t, now)
	if now.Sub(t.start) >= t.duration && t.queued != nil {
		t.queued.start = now
		g.active[id] = t.queued
	}
	return pos, true
}

func (g *Graph) interpolatePosition(t *activeTransition, now time.Time) Position {
	elapsed := now.Sub(t.start)
	var frac float64
	switch {
	case t.duration <= 0 || elapsed >= t.duration:
		frac = 1
	case elapsed <= 0:
		frac = 0
	default:
		frac = float64(elapsed) / float64(t.duration)
	}
	frac = easeFraction(frac, t.kind, t.bezierX1, t.bezierY1, t.bezierX2, t.bezierY2)
	return lerpPosition(t.from, t.to, frac)
}

func positionsEqual(a, b Position) bool {
	if a.Absolute != b.Absolute {
		return false
	}
	if a.Absolute {
		return a.Top == b.Top && a.Left == b.Left &&
			a.HasRight == b.HasRight && a.Right == b.Right &&
			a.HasBottom == b.HasBottom && a.Bottom == b.Bottom
	}
	return floatPtrEqual(a.Width, b.Width) && floatPtrEqual(a.Height, b.Height)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func lerpPosition(from, to Position, frac float64) Position {
	if to.Absolute {
		return Position{
			Absolute:  true,
			Top:       lerp(from.Top, to.Top, frac),
			Left:      lerp(from.Left, to.Left, frac),
			HasRight:  to.HasRight,
			Right:     lerp(from.Right, to.Right, frac),
			HasBottom: to.HasBottom,
			Bottom:    lerp(from.Bottom, to.Bottom, frac),
		}
	}
	return Position{
		Width:  lerpPtr(from.Width, to.Width, frac),
		Height: lerpPtr(from.Height, to.Height, frac),
	}
}

func lerp(a, b, frac float64) float64 { return a + (b-a)*frac }

func lerpPtr(a, b *float64, frac float64) *float64 {
	if b == nil {
		return nil
	}
	start := 0.0
	if a != nil {
		start = *a
	}
	v := lerp(start, *b, frac)
	return &v
}
