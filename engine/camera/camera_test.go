package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

type recordingSetter struct {
	views map[string]common.Mat4
	looks map[string]*state.LookAt
	projs map[string]common.Mat4
}

func newRecordingSetter() *recordingSetter {
	return &recordingSetter{
		views: map[string]common.Mat4{},
		looks: map[string]*state.LookAt{},
		projs: map[string]common.Mat4{},
	}
}

func (r *recordingSetter) SetViewTransform(id string, m common.Mat4, lookAt *state.LookAt) {
	r.views[id] = m
	r.looks[id] = lookAt
}

func (r *recordingSetter) SetProjectionTransform(id string, m common.Mat4) {
	r.projs[id] = m
}

func TestViewMovesEyeToOrigin(t *testing.T) {
	c := NewCamera(WithLookAt(common.Vec3{0, 0, 5}, common.Vec3{}, common.Vec3{0, 1, 0}))

	p := c.ViewMatrix().TransformPoint(common.Vec3{0, 0, 5})
	assert.InDelta(t, 0, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, 0, p[2], 1e-5)

	origin := c.ViewMatrix().TransformPoint(common.Vec3{})
	assert.InDelta(t, -5, origin[2], 1e-5)
}

func TestAspectRecomputesProjection(t *testing.T) {
	c := NewCamera()
	before := c.ProjectionMatrix()

	c.SetAspect(2)
	after := c.ProjectionMatrix()
	assert.InDelta(t, before[0]/2, after[0], 1e-6)
	assert.Equal(t, before[5], after[5])

	c.SetAspect(0)
	assert.Equal(t, float32(2), c.Aspect())
}

func TestApplyPushesBothTransforms(t *testing.T) {
	c := NewCamera(WithAspect(1.5), WithClip(1, 50))
	r := newRecordingSetter()

	c.Apply(r, "cam")
	require.Contains(t, r.views, "cam-view")
	require.Contains(t, r.projs, "cam-proj")
	assert.Equal(t, c.ViewMatrix(), r.views["cam-view"])
	assert.Equal(t, c.ProjectionMatrix(), r.projs["cam-proj"])
	require.NotNil(t, r.looks["cam-view"])
	assert.Equal(t, common.Vec3{0, 0, 10}, r.looks["cam-view"].Eye)
}
