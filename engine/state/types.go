package state

import (
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// noTextureHash is the texture hash of a state with no layers.
const noTextureHash = "__no_texture"

type GeometryState struct {
	Base
	Geometry Geometry
}

// Rehash encodes which optional vertex streams are present.
func (s *GeometryState) Rehash() {
	g := s.Geometry
	s.hash = tf(g.Normals != 0) + tf(g.UV != 0) + tf(g.UV2 != 0) + tf(g.Colors != 0)
}

type ClipsState struct {
	Base
	Clips []Clip
}

func (s *ClipsState) Rehash() {
	modes := make([]string, len(s.Clips))
	for i, c := range s.Clips {
		modes[i] = c.Mode.String()
	}
	s.hash = strings.Join(modes, ",")
}

// ColortransState holds an optional colour transform. A nil Colortrans disables the block.
type ColortransState struct {
	Base
	Colortrans *Colortrans
}

func (s *ColortransState) Rehash() {
	s.hash = tf(s.Colortrans != nil)
}

type FlagsState struct {
	Base
	Flags Flags
}

// FogState holds optional fog. A nil Fog disables the block.
type FogState struct {
	Base
	Fog *Fog
}

func (s *FogState) Rehash() {
	if s.Fog == nil {
		s.hash = ""
		return
	}
	s.hash = s.Fog.Mode.String()
}

type ImagebufState struct {
	Base
	Imagebuf Imagebuf
}

type LightsState struct {
	Base
	Lights []Light
}

func (s *LightsState) Rehash() {
	var sb strings.Builder
	for _, l := range s.Lights {
		sb.WriteString(l.Mode.String())
		if l.Specular {
			sb.WriteByte('s')
		}
		if l.Diffuse {
			sb.WriteByte('d')
		}
	}
	s.hash = sb.String()
}

type MaterialState struct {
	Base
	Material Material
}

// MorphState holds an optional morph. A nil Morph disables morphing.
type MorphState struct {
	Base
	Morph *Morph
}

func (s *MorphState) Rehash() {
	if s.Morph == nil {
		s.hash = ""
		return
	}
	t := s.Morph.Target1
	s.hash = tf(t.Vertices != 0) + tf(t.Normals != 0) + tf(t.UV != 0) + tf(t.UV2 != 0)
}

// PickColorState optionally pins the pick colour of the records it applies to.
type PickColorState struct {
	Base
	PickColor *PickColor
}

type TextureState struct {
	Base
	Layers []TextureLayer
}

func (s *TextureState) Rehash() {
	if len(s.Layers) == 0 {
		s.hash = noTextureHash
		return
	}
	var sb strings.Builder
	for _, l := range s.Layers {
		sb.WriteByte('/')
		sb.WriteString(string(l.ApplyFrom))
		sb.WriteByte('/')
		sb.WriteString(string(l.ApplyTo))
		sb.WriteByte('/')
		sb.WriteString(string(l.Blend))
		if l.Matrix != nil {
			sb.WriteString("/anim")
		}
	}
	s.hash = sb.String()
}

// RendererState holds backend props. No prop reaches shader source, so the hash is always empty.
type RendererState struct {
	Base
	Props RendererProps
}

// TransformState is used by the model, view and projection categories.
type TransformState struct {
	Base
	Matrix       common.Mat4
	NormalMatrix common.Mat4

	// LookAt is set on view transforms built from a camera description.
	LookAt *LookAt
}

type PickListenersState struct {
	Base
	Listeners []PickListener
}

type RenderListenersState struct {
	Base
	Listeners []RenderListener
}

// ShaderState holds optional custom hook code. Its hash is the key it was set under plus a digest of
// the code and hook tables, so changed code under the same key yields a new fingerprint.
type ShaderState struct {
	Base
	Shader *CustomShader
}

func (s *ShaderState) Rehash() {
	if s.Shader == nil {
		s.hash = ""
		return
	}
	d := xxhash.New()
	for _, st := range [...]HookStage{s.Shader.Vertex, s.Shader.Fragment} {
		_, _ = d.WriteString(st.Code)
		_, _ = d.WriteString("\x00")
		for _, name := range slices.Sorted(maps.Keys(st.Hooks)) {
			_, _ = d.WriteString(name)
			_, _ = d.WriteString("=")
			_, _ = d.WriteString(st.Hooks[name])
			_, _ = d.WriteString(";")
		}
		_, _ = d.WriteString("\x00")
	}
	s.hash = s.key + "@" + strconv.FormatUint(d.Sum64(), 16)
}

// ShaderParamsState holds a stack of uniform values for custom shader code. Later entries win.
type ShaderParamsState struct {
	Base
	Params []ShaderParams
}

// TagState labels records for tag-selected frames. An empty tag matches every selector.
type TagState struct {
	Base
	Tag string

	// selector, tested and matches memoise the last match so a frame tests each tag once.
	selector string
	tested   string
	matches  bool
}

// Matches reports whether the tag is selected by re, whose source is selector.
//
// Parameters:
//   - selector: the source of re, used to memoise the result
//   - re: the compiled selector
//
// Returns:
//   - bool: true if the tag is empty or re matches it
func (s *TagState) Matches(selector string, re *regexp.Regexp) bool {
	if s.Tag == "" {
		return true
	}
	if s.selector != selector || s.tested != s.Tag {
		s.selector = selector
		s.tested = s.Tag
		s.matches = re.MatchString(s.Tag)
	}
	return s.matches
}

// New allocates an object of type t holding that category's default payload, with its hash computed.
//
// Parameters:
//   - t: the state category
//   - key: the registry key
//   - stateID: the session sequence number
//
// Returns:
//   - Object: the new object with a zero ref count
func New(t Type, key string, stateID int) Object {
	b := newBase(t, key, stateID)
	var o Object
	switch t {
	case TypeGeometry:
		o = &GeometryState{Base: b}
	case TypeClips:
		o = &ClipsState{Base: b}
	case TypeColortrans:
		o = &ColortransState{Base: b}
	case TypeFlags:
		o = &FlagsState{Base: b, Flags: DefaultFlags()}
	case TypeFog:
		o = &FogState{Base: b}
	case TypeImagebuf:
		o = &ImagebufState{Base: b}
	case TypeLights:
		o = &LightsState{Base: b}
	case TypeMaterial:
		o = &MaterialState{Base: b, Material: DefaultMaterial()}
	case TypeMorph:
		o = &MorphState{Base: b}
	case TypePickColor:
		o = &PickColorState{Base: b}
	case TypeTexture:
		o = &TextureState{Base: b}
	case TypeRenderer:
		o = &RendererState{Base: b, Props: DefaultRendererProps()}
	case TypeModelTransform, TypeProjectionTransform, TypeViewTransform:
		o = &TransformState{Base: b, Matrix: common.Identity(), NormalMatrix: common.Identity()}
	case TypePickListeners:
		o = &PickListenersState{Base: b}
	case TypeRenderListeners:
		o = &RenderListenersState{Base: b}
	case TypeShader:
		o = &ShaderState{Base: b}
	case TypeShaderParams:
		o = &ShaderParamsState{Base: b}
	case TypeTag:
		o = &TagState{Base: b}
	default:
		panic("state: unknown type " + t.String())
	}
	o.Rehash()
	return o
}

func tf(v bool) string {
	if v {
		return "t"
	}
	return "f"
}
