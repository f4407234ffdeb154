// Package render implements the per-tick render graph described in
// spec §4.6: layout resolution, node-texture caching, format conversion,
// and the external-renderer boundaries for Shader/WebView components.
package render

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/scene"
)

// Rect is an axis-aligned layout rectangle in output pixel coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Layer is one leaf to draw, in back-to-front order, at its resolved Rect.
type Layer struct {
	NodeId ids.ComponentId
	Node   scene.Component
	Rect   Rect
}

// RenderLayout is the flattened draw list for one output tick, computed
// from the current (possibly transitioning) scene tree.
type RenderLayout struct {
	Layers []Layer
}

// Resolver looks up a node's transition-resolved Position, mirroring
// scene.Graph.ResolvedPosition; kept as an interface so layout computation
// doesn't import scene's time-dependent state directly.
type Resolver interface {
	ResolvedPosition(id ids.ComponentId, now time.Time) (scene.Position, bool)
}

// ComputeLayout walks root and produces the flattened draw list within the
// given viewport (spec §4.6 "compute a RenderLayout (rectangles +
// transforms per leaf)"). resolver may be nil, in which case every node
// renders at its declared (non-interpolated) Position; otherwise a node
// mid-transition renders at resolver's interpolated Position instead.
func ComputeLayout(root scene.Component, viewport Rect, resolver Resolver, now time.Time) RenderLayout {
	var layers []Layer
	if root != nil {
		layoutNode(root, viewport, resolver, now, &layers)
	}
	return RenderLayout{Layers: layers}
}

func layoutNode(c scene.Component, rect Rect, resolver Resolver, now time.Time, out *[]Layer) {
	switch v := c.(type) {
	case scene.View:
		*out = append(*out, Layer{NodeId: v.Id, Node: v, Rect: rect})
		layoutChildren(v.ChildrenList, v.Direction, padRect(rect, v.Padding), resolver, now, out)
	case scene.Rescaler:
		*out = append(*out, Layer{NodeId: v.Id, Node: v, Rect: rect})
		if v.Child != nil {
			layoutNode(v.Child, rescaleRect(rect, v), resolver, now, out)
		}
	case scene.Tiles:
		*out = append(*out, Layer{NodeId: v.Id, Node: v, Rect: rect})
		layoutTiles(v, rect, resolver, now, out)
	default:
		*out = append(*out, Layer{NodeId: c.ID(), Node: c, Rect: rect})
	}
}

// resolvedPosition returns the position a node should lay out at: its
// resolver-tracked in-flight transition value if one exists, else its
// declared Position.
func resolvedPosition(c scene.Component, pos scene.Position, resolver Resolver, now time.Time) scene.Position {
	if resolver == nil || c.ID() == "" {
		return pos
	}
	if resolved, ok := resolver.ResolvedPosition(c.ID(), now); ok {
		return resolved
	}
	return pos
}

// layoutChildren lays out children in a row or column, splitting rect
// evenly among every child without an Absolute position (spec §3 View
// "direction"); a child's declared Width/Height is not consulted. Children
// with Absolute positions are placed within rect directly instead.
func layoutChildren(children []scene.Component, dir scene.ViewChildrenDirection, rect Rect, resolver Resolver, now time.Time, out *[]Layer) {
	if len(children) == 0 {
		return
	}

	var absolutes, flow []scene.Component
	for _, c := range children {
		if pos, _, ok := childPosition(c); ok {
			if resolvedPosition(c, pos, resolver, now).Absolute {
				absolutes = append(absolutes, c)
				continue
			}
		}
		flow = append(flow, c)
	}

	if len(flow) > 0 {
		n := float64(len(flow))
		if dir == scene.DirectionColumn {
			h := rect.Height / n
			for i, c := range flow {
				layoutNode(c, Rect{X: rect.X, Y: rect.Y + float64(i)*h, Width: rect.Width, Height: h}, resolver, now, out)
			}
		} else {
			w := rect.Width / n
			for i, c := range flow {
				layoutNode(c, Rect{X: rect.X + float64(i)*w, Y: rect.Y, Width: w, Height: rect.Height}, resolver, now, out)
			}
		}
	}

	for _, c := range absolutes {
		pos, _, _ := childPosition(c)
		pos = resolvedPosition(c, pos, resolver, now)
		layoutNode(c, absoluteRect(rect, pos), resolver, now, out)
	}
}

func childPosition(c scene.Component) (scene.Position, *scene.Transition, bool) {
	switch v := c.(type) {
	case scene.View:
		return v.Position, v.Transition, true
	case scene.Rescaler:
		return v.Position, v.Transition, true
	default:
		return scene.Position{}, nil, false
	}
}

func absoluteRect(parent Rect, pos scene.Position) Rect {
	r := Rect{X: parent.X + pos.Left, Y: parent.Y + pos.Top}
	r.Width = parent.Width - pos.Left
	if pos.HasRight {
		r.Width = parent.Width - pos.Left - pos.Right
	}
	r.Height = parent.Height - pos.Top
	if pos.HasBottom {
		r.Height = parent.Height - pos.Top - pos.Bottom
	}
	return r
}

func padRect(r Rect, p scene.Padding) Rect {
	return Rect{
		X:      r.X + p.Left,
		Y:      r.Y + p.Top,
		Width:  r.Width - p.Horizontal(),
		Height: r.Height - p.Vertical(),
	}
}

// rescaleRect returns the Rescaler's own rect unchanged as its child's
// rectangle: layout only needs the outer bound here, matching the teacher's
// habit of deferring texture-dependent sizing to the draw call. Fit/Fill
// mode and the child's aspect ratio are not applied.
func rescaleRect(rect Rect, r scene.Rescaler) Rect {
	if r.Position.Absolute || r.Position.Width != nil || r.Position.Height != nil {
		return rect
	}
	return rect
}

func layoutTiles(t scene.Tiles, rect Rect, resolver Resolver, now time.Time, out *[]Layer) {
	n := len(t.ChildrenList)
	if n == 0 {
		return
	}
	cols := 1
	for cols*cols < n {
		cols++
	}
	rows := (n + cols - 1) / cols
	tileW := rect.Width / float64(cols)
	tileH := rect.Height / float64(rows)

	for i, c := range t.ChildrenList {
		col := i % cols
		row := i / cols
		inner := Rect{
			X:      rect.X + float64(col)*tileW + t.Margin,
			Y:      rect.Y + float64(row)*tileH + t.Margin,
			Width:  tileW - 2*t.Margin,
			Height: tileH - 2*t.Margin,
		}
		layoutNode(c, inner, resolver, now, out)
	}
}
