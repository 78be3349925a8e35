package shader

import "github.com/Carmen-Shannon/oxy-scene/engine/state"

// PickVertex composes the vertex shader of the pick program. It carries position only, but applies
// morphing and the position hooks so picked silhouettes match rendered ones.
func PickVertex(in Inputs) (string, error) {
	f := in.features()
	s := &source{}

	s.line(header)
	s.line("attribute vec3 aVertex;")
	s.line("uniform mat4 uMMatrix;")
	s.line("uniform mat4 uVMatrix;")
	s.line("uniform mat4 uPMatrix;")
	s.line("varying vec4 vWorldVertex;")
	s.line("varying vec4 vViewVertex;")
	if f.morphVertices {
		s.line("uniform float uMorphFactor;")
		s.line("attribute vec3 aMorphVertex;")
	}

	s.line("//@oxy:code")
	s.line("void main(void) {")
	s.line("    vec4 modelVertex = vec4(aVertex, 1.0);")
	if f.morphVertices {
		s.line("    modelVertex = vec4(mix(modelVertex.xyz, aMorphVertex, uMorphFactor), 1.0);")
	}
	s.line("    //@oxy:hook modelPos modelVertex")
	s.line("    vec4 worldVertex = uMMatrix * modelVertex;")
	s.line("    //@oxy:hook worldPos worldVertex")
	s.line("    vec4 viewVertex = uVMatrix * worldVertex;")
	s.line("    //@oxy:hook viewPos viewVertex")
	s.line("    vWorldVertex = worldVertex;")
	s.line("    vViewVertex = viewVertex;")
	s.line("    gl_Position = uPMatrix * viewVertex;")
	s.line("}")

	return finish(s, pickStage(in.hookStage(ShaderTypeVertex)))
}

// PickFragment composes the fragment shader of the pick program. It writes the flat pick colour and
// honours clip planes and the clip hooks.
func PickFragment(in Inputs) (string, error) {
	s := &source{}

	s.line(header)
	s.line("varying vec4 vWorldVertex;")
	s.line("varying vec4 vViewVertex;")
	s.line("uniform vec3 uPickColor;")
	declareClips(s, in.Clips)

	s.line("//@oxy:code")
	s.line("void main(void) {")
	clipLogic(s, in.Clips)
	s.line("    //@oxy:hook worldPosClip vWorldVertex discard")
	s.line("    //@oxy:hook viewPosClip vViewVertex discard")
	s.line("    gl_FragColor = vec4(uPickColor.rgb, 1.0);")
	s.line("}")

	return finish(s, pickHooks(pickStage(in.hookStage(ShaderTypeFragment))))
}

// pickHooks keeps only the clip hooks of a fragment stage; the pick shader has no material or colour
// variables for the others to act on.
func pickHooks(stage state.HookStage) state.HookStage {
	hooks := make(map[string]string, 2)
	for _, name := range []string{HookWorldPosClip, HookViewPosClip} {
		if fn, ok := stage.Hooks[name]; ok {
			hooks[name] = fn
		}
	}
	stage.Hooks = hooks
	return stage
}

// pickStage drops a stage that replaces the render shader outright. Its code brings its own main and
// knows nothing of the pick colour.
func pickStage(stage state.HookStage) state.HookStage {
	if stage.Replaces() {
		return state.HookStage{}
	}
	return stage
}
