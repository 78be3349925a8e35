package state

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
)

// Geometry is the buffer set of one drawable. Zero buffer handles mean the stream is absent.
type Geometry struct {
	Primitive  gfx.Primitive
	Vertices   gfx.Buffer
	Indices    gfx.Buffer
	IndexCount int
	Normals    gfx.Buffer
	UV         gfx.Buffer
	UV2        gfx.Buffer
	Colors     gfx.Buffer
}

// ClipMode selects which side of a clip plane is discarded.
type ClipMode int

const (
	ClipDisabled ClipMode = iota
	// ClipOutside discards fragments with negative signed distance to the plane.
	ClipOutside
	// ClipInside discards fragments with positive signed distance to the plane.
	ClipInside
)

var clipModeNames = [...]string{"disabled", "outside", "inside"}

func (m ClipMode) String() string {
	if m >= 0 && int(m) < len(clipModeNames) {
		return clipModeNames[m]
	}
	return "disabled"
}

// Clip is a world-space clip plane dot(p, Normal) = Dist.
type Clip struct {
	Mode   ClipMode
	Normal common.Vec3
	Dist   float32
}

// Colortrans is an affine colour transform with optional desaturation.
type Colortrans struct {
	Scale      common.RGBA
	Add        common.RGBA
	Saturation float32
}

// Flags toggles per-record behaviour.
type Flags struct {
	Fog         bool
	Colortrans  bool
	Picking     bool
	Clipping    bool
	Enabled     bool
	Visible     bool
	Transparent bool
	Backfaces   bool
	FrontFace   gfx.Winding

	// Blend overrides the transparent pass blend factors when set.
	Blend *BlendFunc
}

// BlendFunc is a pair of blend factors.
type BlendFunc struct {
	Src, Dst gfx.BlendFactor
}

// DefaultFlags returns the flags used when no flags have been set.
func DefaultFlags() Flags {
	return Flags{
		Fog:        true,
		Colortrans: true,
		Picking:    true,
		Clipping:   true,
		Enabled:    true,
		Visible:    true,
		Backfaces:  true,
		FrontFace:  gfx.CCW,
	}
}

// FogMode is the fog falloff function.
type FogMode int

const (
	FogDisabled FogMode = iota
	FogLinear
	FogExp
	FogExp2
	FogConstant
)

var fogModeNames = [...]string{"disabled", "linear", "exp", "exp2", "constant"}

func (m FogMode) String() string {
	if m >= 0 && int(m) < len(fogModeNames) {
		return fogModeNames[m]
	}
	return "disabled"
}

// Fog describes view-depth fog.
type Fog struct {
	Mode    FogMode
	Color   common.RGB
	Density float32
	Start   float32
	End     float32
}

// Imagebuf redirects draws into an offscreen framebuffer, for render-to-texture.
type Imagebuf struct {
	Framebuffer gfx.Framebuffer
}

// LightMode is the kind of a light source.
type LightMode int

const (
	LightDir LightMode = iota
	LightPoint
	LightSpot
)

var lightModeNames = [...]string{"dir", "point", "spot"}

func (m LightMode) String() string {
	if m >= 0 && int(m) < len(lightModeNames) {
		return lightModeNames[m]
	}
	return "dir"
}

// Light is one world-space light source.
type Light struct {
	Mode     LightMode
	Color    common.RGB
	Diffuse  bool
	Specular bool

	// Pos is used by point and spot lights, Dir by directional lights.
	Pos common.Vec3
	Dir common.Vec3

	// Attenuation holds the constant, linear and quadratic coefficients of point light falloff.
	Attenuation [3]float32
}

// Material holds surface properties.
type Material struct {
	BaseColor     common.RGB
	SpecularColor common.RGB
	Specular      float32
	Shine         float32
	Reflect       float32
	Alpha         float32
	Emit          float32
}

// DefaultMaterial returns the material used when no material has been set.
func DefaultMaterial() Material {
	return Material{
		BaseColor:     common.RGB{R: 1, G: 1, B: 1},
		SpecularColor: common.RGB{R: 1, G: 1, B: 1},
		Specular:      1,
		Shine:         10,
		Reflect:       0.8,
		Alpha:         1,
	}
}

// MorphTarget is one key shape of a morph.
type MorphTarget struct {
	Vertices gfx.Buffer
	Normals  gfx.Buffer
	UV       gfx.Buffer
	UV2      gfx.Buffer
}

// Morph interpolates between two targets by Factor.
type Morph struct {
	Target1 MorphTarget
	Target2 MorphTarget
	Factor  float32
}

// PickColor pins the colour a record draws in the pick pass. Unset, the executor assigns one.
type PickColor struct {
	Color common.RGB
}

// ApplyFrom selects the coordinate source of a texture layer.
type ApplyFrom string

const (
	FromUV     ApplyFrom = "uv"
	FromUV2    ApplyFrom = "uv2"
	FromNormal ApplyFrom = "normal"
)

// ApplyTo selects the material property a texture layer modifies.
type ApplyTo string

const (
	ToBaseColor ApplyTo = "baseColor"
	ToAlpha     ApplyTo = "alpha"
	ToEmit      ApplyTo = "emit"
	ToSpecular  ApplyTo = "specular"
	ToNormals   ApplyTo = "normals"
)

// BlendMode combines a texture sample with its target property.
type BlendMode string

const (
	BlendMultiply BlendMode = "multiply"
	BlendAdd      BlendMode = "add"
)

// TextureLayer is one sampler applied to a material property.
type TextureLayer struct {
	Texture   gfx.Texture
	ApplyFrom ApplyFrom
	ApplyTo   ApplyTo
	Blend     BlendMode

	// Matrix transforms texture coordinates when set.
	Matrix *common.Mat4

	// BlendFactor scales the sample before it is combined. Nil means 1.
	BlendFactor *float32
}

// Factor returns the blend factor of the layer.
func (l TextureLayer) Factor() float32 {
	if l.BlendFactor == nil {
		return 1
	}
	return *l.BlendFactor
}

// RendererProps carries per-record backend settings.
type RendererProps struct {
	ClearColor common.RGBA
	Ambient    common.RGB
	Wireframe  bool
	DepthTest  bool

	// Viewport is applied when its width and height are positive.
	Viewport [4]int
}

// DefaultRendererProps returns the props used when none have been set.
func DefaultRendererProps() RendererProps {
	return RendererProps{DepthTest: true}
}

// LookAt describes the camera of a view transform.
type LookAt struct {
	Eye, Look, Up common.Vec3
}

// PickHit is passed to pick listeners.
type PickHit struct {
	X, Y       int
	NodeID     string
	GeometryID string
}

// PickListener is called when a record is picked.
type PickListener func(hit PickHit)

// RenderQuery exposes the transforms in effect while a record is drawn.
type RenderQuery interface {
	ModelMatrix() common.Mat4
	ViewMatrix() common.Mat4
	ProjectionMatrix() common.Mat4

	// CanvasPos projects a model-space point to canvas pixels, origin top-left.
	CanvasPos(p common.Vec3) (x, y float32)
}

// RenderListener is called immediately before a record is drawn.
type RenderListener func(q RenderQuery)

// HookStage is a vertex or fragment hook table.
type HookStage struct {
	// Code is GLSL spliced before main. It defines the hook functions.
	Code string

	// Hooks maps a hook point name (for example "worldPos" or "pixelColor") to a function in Code.
	Hooks map[string]string
}

// Replaces reports whether the stage is a complete shader rather than hook functions: code without
// any hooks replaces the composed render source of that stage.
func (h HookStage) Replaces() bool {
	return h.Code != "" && len(h.Hooks) == 0
}

// CustomShader carries user hook code for both stages.
type CustomShader struct {
	Vertex   HookStage
	Fragment HookStage

	// Params are uniform values for the hook code, applied before any shader params state.
	Params []ShaderParams
}

// ShaderParams maps uniform names to values. Supported values are float32, int32, int, bool,
// common.Vec3, common.RGB, common.RGBA, common.Mat4 and []float32 of length 1, 3, 4 or 16.
type ShaderParams map[string]any
