// Package node defines the draw-call record and the executor that turns records into graphics calls.
package node

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// Node is one draw-call record. It references exactly one state object per category and shares its
// program with every record of the same fingerprint. Apart from the volatile flags and listener
// references swapped during incremental patches, a record never changes after it is built.
type Node struct {
	ID          string
	GeometryID  string
	Layer       string
	SortKey     int
	Program     *program.Program
	Fingerprint program.Fingerprint
	States      [state.NumTypes]state.Object

	// Destroyed marks a record whose geometry was removed. It is compacted out of the bin on the next
	// render or pick.
	Destroyed bool
}

// Volatile lists the categories an incremental patch may swap on an existing record.
var Volatile = [...]state.Type{state.TypeFlags, state.TypePickListeners, state.TypeRenderListeners}

func (n *Node) Geometry() state.Geometry {
	return n.States[state.TypeGeometry].(*state.GeometryState).Geometry
}

func (n *Node) Flags() state.Flags {
	return n.States[state.TypeFlags].(*state.FlagsState).Flags
}

func (n *Node) RendererProps() state.RendererProps {
	return n.States[state.TypeRenderer].(*state.RendererState).Props
}

func (n *Node) Imagebuf() state.Imagebuf {
	return n.States[state.TypeImagebuf].(*state.ImagebufState).Imagebuf
}

func (n *Node) Transform(t state.Type) *state.TransformState {
	return n.States[t].(*state.TransformState)
}

func (n *Node) PickListeners() []state.PickListener {
	return n.States[state.TypePickListeners].(*state.PickListenersState).Listeners
}

func (n *Node) RenderListeners() []state.RenderListener {
	return n.States[state.TypeRenderListeners].(*state.RenderListenersState).Listeners
}

// PickColor returns the pinned pick colour, or nil when the executor assigns one.
func (n *Node) PickColor() *state.PickColor {
	return n.States[state.TypePickColor].(*state.PickColorState).PickColor
}

// Pickable reports whether the record takes part in the pick pass.
func (n *Node) Pickable() bool {
	f := n.Flags()
	return f.Enabled && f.Picking
}

// Transparent reports whether the record is deferred to the blended pass.
func (n *Node) Transparent() bool {
	return n.Flags().Transparent
}

// Tag returns the record's tag state, which memoises selector matches.
func (n *Node) Tag() *state.TagState {
	return n.States[state.TypeTag].(*state.TagState)
}

// ShaderParams returns the uniform stack for custom shader code: the params carried by the custom
// shader first, then the shader params state.
func (n *Node) ShaderParams() []state.ShaderParams {
	var out []state.ShaderParams
	if c := n.States[state.TypeShader].(*state.ShaderState).Shader; c != nil {
		out = append(out, c.Params...)
	}
	return append(out, n.States[state.TypeShaderParams].(*state.ShaderParamsState).Params...)
}
