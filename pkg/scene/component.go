// Package scene implements the component tree, identity-keyed diffing, and
// transition scheduling described in spec §3/§4.6: update_scene diffs a new
// tree against the previous one keyed by ComponentId, starting an
// interpolator for any matched pair whose parent declared a Transition.
package scene

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/ids"
)

// InterpolationKind selects the easing curve a Transition applies.
type InterpolationKind int

const (
	InterpolationLinear InterpolationKind = iota
	InterpolationEaseInOut
	InterpolationCubicBezier
)

// Transition describes how a matched component animates from its current
// interpolated state to a new target (spec §3 "Transition").
type Transition struct {
	Duration          time.Duration
	InterpolationKind InterpolationKind
	// CubicBezier parameters, only meaningful when InterpolationKind is
	// InterpolationCubicBezier.
	BezierX1, BezierY1, BezierX2, BezierY2 float64
	// ShouldInterrupt: true means a new target arriving mid-transition
	// supersedes it (restarting interpolation from the current
	// interpolated state); false queues the new target after the
	// running transition completes.
	ShouldInterrupt bool
}

// Position is a leaf's layout placement: either Static (sized by its
// content/children, optionally width/height-constrained) or Absolute
// (explicit rectangle against its parent).
type Position struct {
	Absolute       bool
	Width, Height  *float64 // Static only
	Top, Left      float64  // Absolute only
	Right, Bottom  float64  // Absolute only, alternate edges
	HasRight       bool
	HasBottom      bool
}

// HorizontalAlign/VerticalAlign select alignment within a rescaled or tiled
// region.
type HorizontalAlign int

const (
	AlignLeft HorizontalAlign = iota
	AlignCenter
	AlignRight
)

type VerticalAlign int

const (
	AlignTop VerticalAlign = iota
	AlignMiddle
	AlignBottom
)

// RGBAColor is a straight-alpha 8-bit-per-channel color.
type RGBAColor struct{ R, G, B, A uint8 }

// BorderRadius is a per-corner radius in pixels.
type BorderRadius struct{ TopLeft, TopRight, BottomLeft, BottomRight float64 }

// Component is implemented by every scene node variant. ID returns the
// node's stable identity (empty if unset, meaning the node has no
// transition/diffing identity of its own).
type Component interface {
	ID() ids.ComponentId
	Children() []Component
}

// InputStream renders decoded frames from a registered input's current
// frame.
type InputStream struct {
	Id      ids.ComponentId
	InputId ids.InputId
}

func (c InputStream) ID() ids.ComponentId  { return c.Id }
func (c InputStream) Children() []Component { return nil }

// Image renders a registered static image asset.
type Image struct {
	Id      ids.ComponentId
	ImageId ids.RendererId
}

func (c Image) ID() ids.ComponentId  { return c.Id }
func (c Image) Children() []Component { return nil }

type TextStyle int

const (
	TextStyleNormal TextStyle = iota
	TextStyleItalic
	TextStyleOblique
)

type TextWrap int

const (
	TextWrapNone TextWrap = iota
	TextWrapGlyph
	TextWrapWord
)

type TextWeight int

const (
	TextWeightThin TextWeight = iota
	TextWeightExtraLight
	TextWeightLight
	TextWeightNormal
	TextWeightMedium
	TextWeightSemiBold
	TextWeightBold
	TextWeightExtraBold
	TextWeightBlack
)

// TextDimensions selects how a Text component's texture is sized.
type TextDimensions struct {
	// Fitted: trims to content within MaxWidth/MaxHeight.
	// FittedColumn: fixed Width, trims height within MaxHeight.
	// Fixed: both Width and Height are exact.
	Mode               TextDimensionsMode
	Width, Height      float64
	MaxWidth, MaxHeight float64
}

type TextDimensionsMode int

const (
	TextDimensionsFitted TextDimensionsMode = iota
	TextDimensionsFittedColumn
	TextDimensionsFixed
)

// Text renders shaped/laid-out text.
type Text struct {
	Id              ids.ComponentId
	Content         string
	FontSize        float64
	LineHeight      float64
	Color           RGBAColor
	FontFamily      string
	Style           TextStyle
	Align           HorizontalAlign
	Weight          TextWeight
	Wrap            TextWrap
	BackgroundColor RGBAColor
	Dimensions      TextDimensions
}

func (c Text) ID() ids.ComponentId  { return c.Id }
func (c Text) Children() []Component { return nil }

// ShaderParam is a tagged-union value passed to a Shader component's
// external renderer (spec.md §1's "external collaborator" boundary).
type ShaderParam struct {
	Kind   ShaderParamKind
	F32    float32
	U32    uint32
	I32    int32
	List   []ShaderParam
	Fields []ShaderParamField
}

type ShaderParamKind int

const (
	ShaderParamF32 ShaderParamKind = iota
	ShaderParamU32
	ShaderParamI32
	ShaderParamList
	ShaderParamStruct
)

type ShaderParamField struct {
	Name  string
	Value ShaderParam
}

// Shader runs a registered shader program over its children's rendered
// textures (degenerately rendered in this repo, see pkg/render.ShaderRenderer).
type Shader struct {
	Id           ids.ComponentId
	ChildrenList []Component
	ShaderId     ids.RendererId
	Param        *ShaderParam
	Width        float64
	Height       float64
}

func (c Shader) ID() ids.ComponentId  { return c.Id }
func (c Shader) Children() []Component { return c.ChildrenList }

// WebView embeds an external browser instance's rendered output (degenerate
// passthrough in this repo, see pkg/render.WebViewRenderer).
type WebView struct {
	Id           ids.ComponentId
	ChildrenList []Component
	InstanceId   ids.RendererId
}

func (c WebView) ID() ids.ComponentId  { return c.Id }
func (c WebView) Children() []Component { return c.ChildrenList }

type ViewChildrenDirection int

const (
	DirectionRow ViewChildrenDirection = iota
	DirectionColumn
)

type Overflow int

const (
	OverflowHidden Overflow = iota
	OverflowVisible
	OverflowFit
)

// Padding is per-edge padding in pixels.
type Padding struct{ Top, Right, Bottom, Left float64 }

func (p Padding) Horizontal() float64 { return p.Left + p.Right }
func (p Padding) Vertical() float64   { return p.Top + p.Bottom }

// View is a layout container: a row/column of children with optional
// position, background, border, and transition.
type View struct {
	Id              ids.ComponentId
	ChildrenList    []Component
	Direction       ViewChildrenDirection
	Position        Position
	Transition      *Transition
	Overflow        Overflow
	BackgroundColor RGBAColor
	BorderRadius    BorderRadius
	BorderWidth     float64
	BorderColor     RGBAColor
	Padding         Padding
}

func (c View) ID() ids.ComponentId  { return c.Id }
func (c View) Children() []Component { return c.ChildrenList }

type RescaleMode int

const (
	RescaleFit RescaleMode = iota
	RescaleFill
)

// Rescaler holds a single child laid out in its own layout rectangle.
// pkg/render's layout passes that rectangle to the child unchanged; Mode
// (fit/fill) and the alignment fields are not applied.
type Rescaler struct {
	Id               ids.ComponentId
	Child            Component
	Position         Position
	Transition       *Transition
	Mode             RescaleMode
	HorizontalAlign  HorizontalAlign
	VerticalAlign    VerticalAlign
	BorderRadius     BorderRadius
	BorderWidth      float64
	BorderColor      RGBAColor
}

func (c Rescaler) ID() ids.ComponentId { return c.Id }
func (c Rescaler) Children() []Component {
	if c.Child == nil {
		return nil
	}
	return []Component{c.Child}
}

// Tiles arranges children into an even grid of ceil(sqrt(n)) columns that
// fills its rectangle, each tile inset by Margin, re-flowing as children
// are added/removed. TileAspectW/TileAspectH are not applied by
// pkg/render's layout.
type Tiles struct {
	Id               ids.ComponentId
	ChildrenList     []Component
	Width, Height    *float64
	BackgroundColor  RGBAColor
	TileAspectW      int
	TileAspectH      int
	Margin           float64
	Padding          float64
	HorizontalAlign  HorizontalAlign
	VerticalAlign    VerticalAlign
	Transition       *Transition
}

func (c Tiles) ID() ids.ComponentId  { return c.Id }
func (c Tiles) Children() []Component { return c.ChildrenList }
