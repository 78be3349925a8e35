package shader

import (
	"math"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// fogFactor evaluates the composed fog falloff on the host. It returns the weight of the lit colour in
// the final blend: 1 means no fog, 0 means fully fogged.
func fogFactor(fog state.Fog, depth float32) float32 {
	if fog.Mode == state.FogDisabled {
		return 1
	}
	fact := 1 - fog.Density
	norm := (fog.End - depth) / (fog.End - fog.Start)
	switch fog.Mode {
	case state.FogLinear:
		fact *= clamp(float32(math.Pow(float64(max(norm, 0)), 2)), 0, 1)
	case state.FogExp, state.FogExp2:
		fact *= clamp(norm, 0, 1)
	}
	return fact
}

// clipDiscards evaluates the composed clip test for one plane on the host.
func clipDiscards(clip state.Clip, world common.Vec3) bool {
	dist := world.Dot(clip.Normal) - clip.Dist
	switch clip.Mode {
	case state.ClipOutside:
		return dist < 0
	case state.ClipInside:
		return dist > 0
	default:
		return false
	}
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
