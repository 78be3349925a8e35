// Package state defines the reference-counted render state objects a traversal exports and the
// registry that deduplicates them within a scene session.
//
// Every draw-call record references exactly one object of each Type. An object's RefCount equals the
// number of live records that reference it; the registry drops it once the count returns to zero.
package state

// Type identifies a state category. The order is fixed and doubles as the index of the category in
// per-record reference arrays.
type Type int

const (
	TypeGeometry Type = iota
	TypeClips
	TypeColortrans
	TypeFlags
	TypeFog
	TypeImagebuf
	TypeLights
	TypeMaterial
	TypeMorph
	TypePickColor
	TypeTexture
	TypeRenderer
	TypeModelTransform
	TypeProjectionTransform
	TypeViewTransform
	TypePickListeners
	TypeRenderListeners
	TypeShader
	TypeShaderParams
	TypeTag

	// NumTypes is the number of state categories.
	NumTypes
)

var typeNames = [NumTypes]string{
	"geometry", "clips", "colortrans", "flags", "fog", "imagebuf", "lights", "material", "morph",
	"pick_color", "texture", "renderer", "model_transform", "projection_transform", "view_transform",
	"pick_listeners", "render_listeners", "shader", "shader_params", "tag",
}

func (t Type) String() string {
	if t >= 0 && t < NumTypes {
		return typeNames[t]
	}
	return "unknown"
}

// DefaultKey is the registry key used when a setter is called without an id.
func DefaultKey(t Type) string {
	return "__default_" + t.String()
}

// Object is implemented by every state category.
type Object interface {
	// Key returns the registry key the object was allocated under, including any id prefix.
	Key() string

	// StateID returns the object's sequence number within its session. Executors compare state ids to
	// skip rebinding unchanged state.
	StateID() int

	// Type returns the object's category.
	Type() Type

	// RefCount returns the number of live draw-call records referencing the object.
	RefCount() int

	// Hash returns the feature hash contributing to the program fingerprint. Categories that do not
	// affect shader source always return "".
	Hash() string

	// Rehash recomputes Hash from the current payload.
	Rehash()

	base() *Base
}

// Base carries the bookkeeping shared by all state objects. Typed states embed it.
type Base struct {
	key      string
	stateID  int
	typ      Type
	refCount int
	hash     string
}

func newBase(t Type, key string, stateID int) Base {
	return Base{key: key, stateID: stateID, typ: t}
}

func (b *Base) Key() string   { return b.key }
func (b *Base) StateID() int  { return b.stateID }
func (b *Base) Type() Type    { return b.typ }
func (b *Base) RefCount() int { return b.refCount }
func (b *Base) Hash() string  { return b.hash }
func (b *Base) Rehash()       {}
func (b *Base) base() *Base   { return b }
