package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

func litInputs() Inputs {
	return Inputs{
		Geometry: state.Geometry{Vertices: 1, Indices: 2, Normals: 3, UV: 4},
		Lights: []state.Light{
			{Mode: state.LightDir, Diffuse: true, Specular: true},
			{Mode: state.LightPoint, Diffuse: true},
		},
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	c := NewComposer(WithWorkers(2))
	defer c.Close()

	a, err := c.Compose(litInputs())
	require.NoError(t, err)

	// different buffer handles and light values, same features
	in := litInputs()
	in.Geometry = state.Geometry{Vertices: 10, Indices: 11, Normals: 12, UV: 13}
	in.Lights[0].Color = common.RGB{R: 0.5}
	in.Lights[1].Pos = common.Vec3{4, 5, 6}
	b, err := c.Compose(in)
	require.NoError(t, err)

	assert.Equal(t, a, b)

	direct, err := RenderFragment(litInputs())
	require.NoError(t, err)
	assert.Equal(t, direct, a.RenderFragment)
}

func TestLightingNeedsNormals(t *testing.T) {
	in := litInputs()
	vs, err := RenderVertex(in)
	require.NoError(t, err)
	assert.Contains(t, vs, "uniform vec3 uLightDir0;")
	assert.Contains(t, vs, "uniform vec3 uLightPos1;")
	assert.Contains(t, vs, "varying vec4 vLightVecAndDist1;")
	assert.Contains(t, vs, "vLightVecAndDist1 = vec4(normalize(tmpVec3), length(tmpVec3));")

	fs, err := RenderFragment(in)
	require.NoError(t, err)
	assert.Contains(t, fs, "uniform vec3 uLightAttenuation1;")
	assert.NotContains(t, fs, "uLightAttenuation0")
	assert.Contains(t, fs, "pow(max(dot(reflect(-lightVec, normalVec), vEyeVec), 0.0), shine)")

	in.Geometry.Normals = 0
	vs, err = RenderVertex(in)
	require.NoError(t, err)
	assert.NotContains(t, vs, "aNormal")
	assert.NotContains(t, vs, "uLightDir0")

	in.Morph = &state.Morph{Target1: state.MorphTarget{Vertices: 7, Normals: 8}}
	vs, err = RenderVertex(in)
	require.NoError(t, err)
	assert.Contains(t, vs, "attribute vec3 aMorphNormal;")
	assert.Contains(t, vs, "uLightDir0")
	assert.Contains(t, vs, "modelVertex = vec4(mix(modelVertex.xyz, aMorphVertex, uMorphFactor), 1.0);")
}

func TestTextureLayerFallback(t *testing.T) {
	in := Inputs{
		Geometry: state.Geometry{Vertices: 1, Indices: 2, UV: 4},
		Lights:   []state.Light{{Mode: state.LightDir, Diffuse: true}},
		Layers: []state.TextureLayer{
			{ApplyFrom: state.FromUV, ApplyTo: state.ToBaseColor, Blend: state.BlendMultiply},
			{ApplyFrom: state.FromNormal, ApplyTo: state.ToBaseColor, Blend: state.BlendAdd},
			{ApplyFrom: state.FromUV, ApplyTo: state.ToEmit, Blend: state.BlendAdd},
		},
	}
	fs, err := RenderFragment(in)
	require.NoError(t, err)

	assert.Contains(t, fs, "uniform sampler2D uSampler0;")
	assert.NotContains(t, fs, "uSampler1")
	assert.Contains(t, fs, "uniform sampler2D uSampler2;")
	assert.Contains(t, fs, "uniform float uLayer0BlendFactor;")
	assert.NotContains(t, fs, "uLayer1BlendFactor")
	assert.Contains(t, fs, "color = color * (uLayer0BlendFactor * textureColor.rgb);")
	assert.Contains(t, fs, "emit = emit + uLayer2BlendFactor * textureColor.r;")
	assert.NotContains(t, fs, "texturePos = vec4(normalVec, 0.0);")
}

func TestTextureNeedsUV(t *testing.T) {
	in := Inputs{
		Geometry: state.Geometry{Vertices: 1, Indices: 2},
		Layers:   []state.TextureLayer{{ApplyFrom: state.FromUV, ApplyTo: state.ToBaseColor}},
	}
	fs, err := RenderFragment(in)
	require.NoError(t, err)
	assert.NotContains(t, fs, "sampler2D")

	m := common.Identity()
	in.Geometry.UV = 3
	in.Layers[0].Matrix = &m
	fs, err = RenderFragment(in)
	require.NoError(t, err)
	assert.Contains(t, fs, "uniform mat4 uLayer0Matrix;")
	assert.Contains(t, fs, "texture2D(uSampler0, vec2(textureCoord.x, 1.0 - textureCoord.y))")
}

func TestFogLinearFalloff(t *testing.T) {
	fog := state.Fog{Mode: state.FogLinear, Start: 1, End: 1000}
	near := fogFactor(fog, 1)
	mid := fogFactor(fog, 500)
	far := fogFactor(fog, 1000)

	assert.InDelta(t, 1, near, 1e-6)
	assert.InDelta(t, 0, far, 1e-6)
	assert.Greater(t, mid, far)
	assert.Less(t, mid, near)

	prev := near
	for d := float32(50); d <= 1000; d += 50 {
		cur := fogFactor(fog, d)
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}

	fs, err := RenderFragment(Inputs{Fog: &fog})
	require.NoError(t, err)
	assert.Contains(t, fs, "fogFact *= clamp(pow(max((uFogEnd - fogDepth) / (uFogEnd - uFogStart), 0.0), 2.0), 0.0, 1.0);")
	assert.Contains(t, fs, "mix(uFogColor, fragColor.rgb, fogFact)")

	fs, err = RenderFragment(Inputs{})
	require.NoError(t, err)
	assert.NotContains(t, fs, "uFogMode")
}

func TestFogDensityAndExp(t *testing.T) {
	fog := state.Fog{Mode: state.FogExp, Density: 0.5, Start: 0, End: 10}
	assert.InDelta(t, 0.25, fogFactor(fog, 5), 1e-6)
	assert.InDelta(t, 1, fogFactor(state.Fog{Mode: state.FogDisabled}, 5), 1e-6)
	assert.InDelta(t, 0.5, fogFactor(state.Fog{Mode: state.FogConstant, Density: 0.5}, 5), 1e-6)
}

func TestClipPlaneDiscard(t *testing.T) {
	clip := state.Clip{Mode: state.ClipOutside, Normal: common.Vec3{0, 0, 1}}
	for _, z := range []float32{-100, -1, -0.001} {
		assert.True(t, clipDiscards(clip, common.Vec3{3, -2, z}), "z=%v", z)
	}
	for _, z := range []float32{0, 0.001, 1, 100} {
		assert.False(t, clipDiscards(clip, common.Vec3{3, -2, z}), "z=%v", z)
	}
	inside := state.Clip{Mode: state.ClipInside, Normal: common.Vec3{0, 0, 1}}
	assert.True(t, clipDiscards(inside, common.Vec3{0, 0, 1}))
	assert.False(t, clipDiscards(state.Clip{Normal: common.Vec3{0, 0, 1}}, common.Vec3{0, 0, -1}))

	in := Inputs{Clips: []state.Clip{clip}}
	fs, err := RenderFragment(in)
	require.NoError(t, err)
	pfs, err := PickFragment(in)
	require.NoError(t, err)
	for _, src := range []string{fs, pfs} {
		assert.Contains(t, src, "uniform float uClipMode0;")
		assert.Contains(t, src, "dist = dot(vWorldVertex.xyz, uClipNormalAndDist0.xyz) - uClipNormalAndDist0.w;")
		assert.Contains(t, src, "if (dist < 0.0) { discard; }")
	}
}

func TestPickShadersAreFlat(t *testing.T) {
	in := litInputs()
	in.Fog = &state.Fog{Mode: state.FogLinear}
	in.Layers = []state.TextureLayer{{ApplyFrom: state.FromUV, ApplyTo: state.ToBaseColor}}

	vs, err := PickVertex(in)
	require.NoError(t, err)
	fs, err := PickFragment(in)
	require.NoError(t, err)

	assert.NotContains(t, vs, "aNormal")
	assert.NotContains(t, fs, "uFog")
	assert.NotContains(t, fs, "sampler2D")
	assert.NotContains(t, fs, "uLightColor")
	assert.Contains(t, fs, "gl_FragColor = vec4(uPickColor.rgb, 1.0);")
	assert.True(t, strings.HasPrefix(fs, header))
}

func TestCustomHooksAreSpliced(t *testing.T) {
	in := Inputs{
		Custom: &state.CustomShader{
			Vertex: state.HookStage{
				Code:  "vec4 wobble(vec4 p) { return p; }",
				Hooks: map[string]string{HookWorldPos: "wobble"},
			},
			Fragment: state.HookStage{
				Code: "bool keep(vec4 p) { return p.y > 0.0; }\nvec4 tint(vec4 c) { return c; }",
				Hooks: map[string]string{
					HookWorldPosClip: "keep",
					HookPixelColor:   "tint",
				},
			},
		},
	}

	vs, err := RenderVertex(in)
	require.NoError(t, err)
	assert.Contains(t, vs, "    worldVertex = wobble(worldVertex);")
	assert.Less(t, strings.Index(vs, "vec4 wobble"), strings.Index(vs, "void main"))
	assert.NotContains(t, vs, annotationPrefix)

	fs, err := RenderFragment(in)
	require.NoError(t, err)
	assert.Contains(t, fs, "if (keep(vWorldVertex) == false) { discard; }")
	assert.Contains(t, fs, "fragColor = tint(fragColor);")

	pfs, err := PickFragment(in)
	require.NoError(t, err)
	assert.Contains(t, pfs, "if (keep(vWorldVertex) == false) { discard; }")
	assert.NotContains(t, pfs, "tint(fragColor)")

	pvs, err := PickVertex(in)
	require.NoError(t, err)
	assert.Contains(t, pvs, "worldVertex = wobble(worldVertex);")
}

func TestCustomStageWithoutHooksReplacesSource(t *testing.T) {
	vertex := "attribute vec3 aVertex;\nvoid main(void) { gl_Position = vec4(aVertex, 1.0); }"
	fragment := "void main(void) { gl_FragColor = vec4(1.0, 0.0, 0.0, 1.0); }"
	in := litInputs()
	in.Custom = &state.CustomShader{
		Vertex:   state.HookStage{Code: vertex},
		Fragment: state.HookStage{Code: fragment},
	}

	vs, err := RenderVertex(in)
	require.NoError(t, err)
	assert.Equal(t, vertex, vs)

	fs, err := RenderFragment(in)
	require.NoError(t, err)
	assert.Equal(t, fragment, fs)

	// the pick program keeps its own shaders
	pvs, err := PickVertex(in)
	require.NoError(t, err)
	assert.NotContains(t, pvs, "gl_Position = vec4(aVertex, 1.0)")
	assert.Equal(t, 1, strings.Count(pvs, "void main"))

	pfs, err := PickFragment(in)
	require.NoError(t, err)
	assert.NotContains(t, pfs, "vec4(1.0, 0.0, 0.0, 1.0)")
	assert.Contains(t, pfs, "gl_FragColor = vec4(uPickColor.rgb, 1.0);")

	// hooks keep the composed source
	in.Custom.Fragment.Code = "vec4 tint(vec4 c) { return c; }"
	in.Custom.Fragment.Hooks = map[string]string{HookPixelColor: "tint"}
	fs, err = RenderFragment(in)
	require.NoError(t, err)
	assert.Contains(t, fs, "fragColor = tint(fragColor);")
	assert.Contains(t, fs, "uLightColor")
}

func TestComposeReportsBadHookName(t *testing.T) {
	c := NewComposer()
	defer c.Close()

	_, err := c.Compose(Inputs{Custom: &state.CustomShader{
		Vertex: state.HookStage{Hooks: map[string]string{HookViewPos: "not valid"}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render vertex")
	assert.Contains(t, err.Error(), "pick vertex")
}

func TestParseAnnotation(t *testing.T) {
	a, err := parseAnnotation("    //@oxy:hook worldPosClip vWorldVertex discard", 4)
	require.NoError(t, err)
	assert.Equal(t, &Annotation{Type: annotationTypeHook, Hook: HookWorldPosClip, Var: "vWorldVertex", Discard: true, Line: 4}, a)

	a, err = parseAnnotation("uniform float x; // not an annotation", 1)
	require.NoError(t, err)
	assert.Nil(t, a)

	for _, bad := range []string{
		"//@oxy:",
		"//@oxy:hook",
		"//@oxy:hook nowhere v",
		"//@oxy:hook worldPos 9v",
		"//@oxy:hook worldPos v keep",
		"//@oxy:code extra",
		"//@oxy:include camera",
	} {
		_, err := parseAnnotation(bad, 7)
		assert.Error(t, err, bad)
		assert.Contains(t, err.Error(), "line 7", bad)
	}
}

func TestPreProcessorDropsUnboundHooks(t *testing.T) {
	src := "a\n//@oxy:code\n    //@oxy:hook modelPos v\nb"
	out, err := NewPreProcessor(state.HookStage{}).Process(src)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", out)
}
