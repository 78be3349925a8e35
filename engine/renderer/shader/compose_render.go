package shader

import "github.com/Carmen-Shannon/oxy-scene/engine/state"

// RenderVertex composes the vertex shader of the render program. A custom vertex stage with code and
// no hooks is returned verbatim in place of the composed source.
//
// Parameters:
//   - in: the active inputs
//
// Returns:
//   - string: GLSL ES 1.0 source
//   - error: if the custom vertex hooks cannot be spliced
func RenderVertex(in Inputs) (string, error) {
	if st := in.hookStage(ShaderTypeVertex); st.Replaces() {
		return st.Code, nil
	}
	f := in.features()
	s := &source{}

	s.line(header)
	s.line("attribute vec3 aVertex;")
	s.line("uniform mat4 uMMatrix;")
	s.line("uniform mat4 uVMatrix;")
	s.line("uniform mat4 uPMatrix;")
	s.line("varying vec4 vWorldVertex;")
	s.line("varying vec4 vViewVertex;")

	pointLights := false
	if f.lighting {
		s.line("attribute vec3 aNormal;")
		s.line("uniform mat4 uMNMatrix;")
		s.line("uniform vec3 uEye;")
		s.line("varying vec3 vNormal;")
		s.line("varying vec3 vEyeVec;")
		for i, l := range in.Lights {
			if l.Mode == state.LightDir {
				s.linef("uniform vec3 uLightDir%d;", i)
			} else {
				s.linef("uniform vec3 uLightPos%d;", i)
				pointLights = true
			}
			s.linef("varying vec4 vLightVecAndDist%d;", i)
		}
	}

	if f.texturing {
		if f.uv {
			s.line("attribute vec2 aUVCoord;")
			s.line("varying vec2 vUVCoord;")
		}
		if f.uv2 {
			s.line("attribute vec2 aUVCoord2;")
			s.line("varying vec2 vUVCoord2;")
		}
	}

	if f.colors {
		s.line("attribute vec4 aVertexColor;")
		s.line("varying vec4 vColor;")
	}

	if f.morphing {
		s.line("uniform float uMorphFactor;")
		if f.morphVertices {
			s.line("attribute vec3 aMorphVertex;")
		}
		if f.morphNormals {
			s.line("attribute vec3 aMorphNormal;")
		}
	}

	s.line("//@oxy:code")
	s.line("void main(void) {")
	s.line("    vec4 modelVertex = vec4(aVertex, 1.0);")
	if f.lighting {
		s.line("    vec4 modelNormal = vec4(aNormal, 0.0);")
	}
	if f.morphVertices {
		s.line("    modelVertex = vec4(mix(modelVertex.xyz, aMorphVertex, uMorphFactor), 1.0);")
	}
	if f.morphNormals {
		s.line("    modelNormal = vec4(mix(modelNormal.xyz, aMorphNormal, uMorphFactor), 0.0);")
	}
	s.line("    //@oxy:hook modelPos modelVertex")
	s.line("    vec4 worldVertex = uMMatrix * modelVertex;")
	s.line("    //@oxy:hook worldPos worldVertex")
	s.line("    vec4 viewVertex = uVMatrix * worldVertex;")
	s.line("    //@oxy:hook viewPos viewVertex")

	if f.lighting {
		s.line("    vec4 worldNormal = uMNMatrix * modelNormal;")
		s.line("    vNormal = normalize(worldNormal.xyz);")
		s.line("    vEyeVec = normalize(uEye - worldVertex.xyz);")
		if pointLights {
			s.line("    vec3 tmpVec3;")
		}
		for i, l := range in.Lights {
			if l.Mode == state.LightDir {
				s.linef("    vLightVecAndDist%d = vec4(-normalize(uLightDir%d), 0.0);", i, i)
			} else {
				s.linef("    tmpVec3 = uLightPos%d - worldVertex.xyz;", i)
				s.linef("    vLightVecAndDist%d = vec4(normalize(tmpVec3), length(tmpVec3));", i)
			}
		}
	}

	if f.texturing {
		if f.uv {
			s.line("    vUVCoord = aUVCoord;")
		}
		if f.uv2 {
			s.line("    vUVCoord2 = aUVCoord2;")
		}
	}
	if f.colors {
		s.line("    vColor = aVertexColor;")
	}

	s.line("    vWorldVertex = worldVertex;")
	s.line("    vViewVertex = viewVertex;")
	s.line("    gl_Position = uPMatrix * viewVertex;")
	s.line("}")

	return finish(s, in.hookStage(ShaderTypeVertex))
}

// RenderFragment composes the fragment shader of the render program. Texture layers whose coordinate
// source or target is unavailable are skipped with a warning.
//
// Parameters:
//   - in: the active inputs
//
// Returns:
//   - string: GLSL ES 1.0 source
//   - error: if the custom fragment hooks cannot be spliced
func RenderFragment(in Inputs) (string, error) {
	if st := in.hookStage(ShaderTypeFragment); st.Replaces() {
		return st.Code, nil
	}
	f := in.features()
	plan := in.planLayers(f)
	logWarnings(plan.warnings)
	s := &source{}

	s.line(header)
	s.line("varying vec4 vWorldVertex;")
	s.line("varying vec4 vViewVertex;")

	declareClips(s, in.Clips)

	if f.texturing {
		if f.uv {
			s.line("varying vec2 vUVCoord;")
		}
		if f.uv2 {
			s.line("varying vec2 vUVCoord2;")
		}
		for _, i := range plan.active {
			s.linef("uniform sampler2D uSampler%d;", i)
			s.linef("uniform float uLayer%dBlendFactor;", i)
			if in.Layers[i].Matrix != nil {
				s.linef("uniform mat4 uLayer%dMatrix;", i)
			}
		}
	}

	if f.colors {
		s.line("varying vec4 vColor;")
	}

	s.line("uniform vec3 uMaterialBaseColor;")
	s.line("uniform float uMaterialAlpha;")
	s.line("uniform float uMaterialEmit;")
	s.line("uniform vec3 uAmbient;")

	if f.lighting {
		s.line("uniform vec3 uMaterialSpecularColor;")
		s.line("uniform float uMaterialSpecular;")
		s.line("uniform float uMaterialShine;")
		s.line("varying vec3 vNormal;")
		s.line("varying vec3 vEyeVec;")
		for i, l := range in.Lights {
			s.linef("uniform vec3 uLightColor%d;", i)
			if l.Mode != state.LightDir {
				s.linef("uniform vec3 uLightAttenuation%d;", i)
			}
			s.linef("varying vec4 vLightVecAndDist%d;", i)
		}
	}

	if f.fog {
		s.line("uniform float uFogMode;")
		s.line("uniform vec3 uFogColor;")
		s.line("uniform float uFogDensity;")
		s.line("uniform float uFogStart;")
		s.line("uniform float uFogEnd;")
	}

	if f.colortrans {
		s.line("uniform float uColortransMode;")
		s.line("uniform vec4 uColortransAdd;")
		s.line("uniform vec4 uColortransScale;")
		s.line("uniform float uColortransSaturation;")
	}

	s.line("//@oxy:code")
	s.line("void main(void) {")

	clipLogic(s, in.Clips)
	s.line("    //@oxy:hook worldPosClip vWorldVertex discard")
	s.line("    //@oxy:hook viewPosClip vViewVertex discard")

	s.line("    vec3 color = uMaterialBaseColor;")
	if f.colors {
		s.line("    color = color * vColor.rgb;")
	}
	s.line("    float alpha = uMaterialAlpha;")
	s.line("    float emit = uMaterialEmit;")
	s.line("    //@oxy:hook materialBaseColor color")
	s.line("    //@oxy:hook materialAlpha alpha")
	s.line("    //@oxy:hook materialEmit emit")
	if f.lighting {
		s.line("    vec3 specularColor = uMaterialSpecularColor;")
		s.line("    float specular = uMaterialSpecular;")
		s.line("    float shine = uMaterialShine;")
		s.line("    vec3 normalVec = normalize(vNormal);")
		s.line("    //@oxy:hook materialSpecularColor specularColor")
		s.line("    //@oxy:hook materialSpecular specular")
		s.line("    //@oxy:hook materialShine shine")
	}

	if len(plan.active) > 0 {
		textureLogic(s, in.Layers, plan)
	}

	if f.lighting {
		lightingLogic(s, in.Lights)
	} else {
		s.line("    vec4 fragColor = vec4(color * uAmbient + emit * color, alpha);")
	}

	if f.fog {
		fogLogic(s)
	}
	if f.colortrans {
		colortransLogic(s)
	}
	if in.Whitewash {
		s.line("    fragColor = vec4(1.0, 1.0, 1.0, 1.0);")
	}
	s.line("    //@oxy:hook pixelColor fragColor")
	s.line("    gl_FragColor = fragColor;")
	s.line("}")

	return finish(s, in.hookStage(ShaderTypeFragment))
}

func declareClips(s *source, clips []state.Clip) {
	for i := range clips {
		s.linef("uniform float uClipMode%d;", i)
		s.linef("uniform vec4 uClipNormalAndDist%d;", i)
	}
}

// clipLogic emits one discard test per plane. Mode 1 discards the negative side, mode 2 the positive.
func clipLogic(s *source, clips []state.Clip) {
	if len(clips) == 0 {
		return
	}
	s.line("    float dist = 0.0;")
	for i := range clips {
		s.linef("    if (uClipMode%d != 0.0) {", i)
		s.linef("        dist = dot(vWorldVertex.xyz, uClipNormalAndDist%d.xyz) - uClipNormalAndDist%d.w;", i, i)
		s.linef("        if (uClipMode%d == 1.0) {", i)
		s.line("            if (dist < 0.0) { discard; }")
		s.linef("        } else if (uClipMode%d == 2.0) {", i)
		s.line("            if (dist > 0.0) { discard; }")
		s.line("        }")
		s.line("    }")
	}
}

func textureLogic(s *source, layers []state.TextureLayer, plan layerPlan) {
	s.line("    vec4 texturePos;")
	s.line("    vec2 textureCoord;")
	s.line("    vec4 textureColor;")
	for _, i := range plan.active {
		l := layers[i]
		switch l.ApplyFrom {
		case state.FromUV:
			s.line("    texturePos = vec4(vUVCoord.s, vUVCoord.t, 1.0, 1.0);")
		case state.FromUV2:
			s.line("    texturePos = vec4(vUVCoord2.s, vUVCoord2.t, 1.0, 1.0);")
		case state.FromNormal:
			s.line("    texturePos = vec4(normalVec, 0.0);")
		}
		if l.Matrix != nil {
			s.linef("    textureCoord = (uLayer%dMatrix * texturePos).xy;", i)
		} else {
			s.line("    textureCoord = texturePos.xy;")
		}
		s.linef("    textureColor = texture2D(uSampler%d, vec2(textureCoord.x, 1.0 - textureCoord.y));", i)

		blend := func(target, sample string) {
			if l.Blend == state.BlendMultiply {
				s.linef("    %s = %s * (uLayer%dBlendFactor * %s);", target, target, i, sample)
				return
			}
			s.linef("    %s = %s + uLayer%dBlendFactor * %s;", target, target, i, sample)
		}
		switch l.ApplyTo {
		case state.ToBaseColor:
			blend("color", "textureColor.rgb")
		case state.ToAlpha:
			blend("alpha", "textureColor.b")
		case state.ToEmit:
			blend("emit", "textureColor.r")
		case state.ToSpecular:
			blend("specular", "(1.0 - textureColor.r)")
		case state.ToNormals:
			s.line("    normalVec = normalize(normalVec + (textureColor.xyz * 2.0 - 1.0));")
		}
	}
}

func lightingLogic(s *source, lights []state.Light) {
	s.line("    vec3 lightValue = uAmbient;")
	s.line("    vec3 specularValue = vec3(0.0, 0.0, 0.0);")
	s.line("    vec3 lightVec;")
	s.line("    float dotN;")
	s.line("    float attenuation;")
	for i, l := range lights {
		s.linef("    lightVec = vLightVecAndDist%d.xyz;", i)
		if l.Mode == state.LightDir {
			s.line("    attenuation = 1.0;")
		} else {
			s.linef("    attenuation = 1.0 / (uLightAttenuation%d.x + uLightAttenuation%d.y * vLightVecAndDist%d.w + uLightAttenuation%d.z * vLightVecAndDist%d.w * vLightVecAndDist%d.w);", i, i, i, i, i, i)
		}
		s.line("    dotN = max(dot(normalVec, lightVec), 0.0);")
		if l.Diffuse {
			s.linef("    lightValue += dotN * uLightColor%d * attenuation;", i)
		}
		if l.Specular {
			s.linef("    specularValue += attenuation * specular * specularColor * uLightColor%d * pow(max(dot(reflect(-lightVec, normalVec), vEyeVec), 0.0), shine);", i)
		}
	}
	s.line("    vec4 fragColor = vec4(specularValue + color * lightValue + emit * color, alpha);")
}

// fogLogic blends toward the fog colour. Linear falloff is a clamped quadratic of the normalised
// distance to the fog end, exp and exp2 are clamped linear, and density scales the base factor.
func fogLogic(s *source) {
	s.line("    if (uFogMode != 0.0) {")
	s.line("        float fogFact = 1.0 - uFogDensity;")
	s.line("        float fogDepth = length(vViewVertex.xyz);")
	s.line("        if (uFogMode == 1.0) {")
	s.line("            fogFact *= clamp(pow(max((uFogEnd - fogDepth) / (uFogEnd - uFogStart), 0.0), 2.0), 0.0, 1.0);")
	s.line("        } else if (uFogMode == 2.0 || uFogMode == 3.0) {")
	s.line("            fogFact *= clamp((uFogEnd - fogDepth) / (uFogEnd - uFogStart), 0.0, 1.0);")
	s.line("        }")
	s.line("        fragColor = vec4(mix(uFogColor, fragColor.rgb, fogFact), fragColor.a);")
	s.line("    }")
}

func colortransLogic(s *source) {
	s.line("    if (uColortransMode != 0.0) {")
	s.line("        if (uColortransSaturation < 0.0) {")
	s.line("            float intensity = 0.3 * fragColor.r + 0.59 * fragColor.g + 0.11 * fragColor.b;")
	s.line("            fragColor = vec4((intensity * -uColortransSaturation) + fragColor.rgb * (1.0 + uColortransSaturation), fragColor.a);")
	s.line("        }")
	s.line("        fragColor = (fragColor * uColortransScale) + uColortransAdd;")
	s.line("    }")
}
