package node

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// query is the view render listeners get of the record being drawn.
type query struct {
	node   *Node
	width  int
	height int
}

var _ state.RenderQuery = &query{}

func (q *query) ModelMatrix() common.Mat4 {
	return q.node.Transform(state.TypeModelTransform).Matrix
}

func (q *query) ViewMatrix() common.Mat4 {
	return q.node.Transform(state.TypeViewTransform).Matrix
}

func (q *query) ProjectionMatrix() common.Mat4 {
	return q.node.Transform(state.TypeProjectionTransform).Matrix
}

func (q *query) CanvasPos(p common.Vec3) (float32, float32) {
	mvp := q.ProjectionMatrix().Mul(q.ViewMatrix()).Mul(q.ModelMatrix())
	clip := mvp.TransformPoint(p)
	w := clip[3]
	if w == 0 {
		w = 1
	}
	x := (clip[0]/w*0.5 + 0.5) * float32(q.width)
	y := (1 - (clip[1]/w*0.5 + 0.5)) * float32(q.height)
	return x, y
}
