// package common contains plain value types and math helpers shared by the render core. They are not
// interface-wrapped structs, just small values that are copied into state payloads and uniforms.
package common

// Vec3 is a three component float vector.
type Vec3 [3]float32

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Len returns the euclidean length of v.
func (v Vec3) Len() float32 {
	return sqrt32(v.Dot(v))
}

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}

// RGB is a linear colour with components in [0, 1].
type RGB struct {
	R, G, B float32
}

// Slice returns the colour as a three element slice suitable for a vec3 uniform.
func (c RGB) Slice() []float32 {
	return []float32{c.R, c.G, c.B}
}

// RGBA is a linear colour with an alpha component.
type RGBA struct {
	R, G, B, A float32
}

// RGB drops the alpha component.
func (c RGBA) RGB() RGB {
	return RGB{R: c.R, G: c.G, B: c.B}
}

// Slice returns the colour as a four element slice suitable for a vec4 uniform.
func (c RGBA) Slice() []float32 {
	return []float32{c.R, c.G, c.B, c.A}
}
