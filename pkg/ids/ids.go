// Package ids defines the opaque, hashable identifier types shared by the
// input/output registries, the scene graph, and the renderer cache.
package ids

// InputId identifies a registered input stream. Equality defines identity
// in the input registry.
type InputId string

// OutputId identifies a registered output stream.
type OutputId string

// RendererId identifies a registered renderer instance (shader, image,
// font, web-renderer).
type RendererId string

// ComponentId identifies a scene component across updates. It is the key
// used to match components between successive update_scene calls when
// deciding whether a transition continues, is interrupted, or starts fresh.
type ComponentId string

func (i InputId) String() string      { return string(i) }
func (o OutputId) String() string     { return string(o) }
func (r RendererId) String() string   { return string(r) }
func (c ComponentId) String() string  { return string(c) }
