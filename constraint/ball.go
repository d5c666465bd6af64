package constraint

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/go-gl/mathgl/mgl64"
)

var worldAxes = [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Ball keeps a point of body 0 and a point of body 1 together, leaving the rotation free
type Ball struct {
	Bilateral
	LocalPivot0 mgl64.Vec3
	LocalPivot1 mgl64.Vec3
}

// NewBall creates a ball joint at pivot (world space). Both bodies must be registered.
func NewBall(body0, body1 *actor.RigidBody, pivot mgl64.Vec3) *Ball {
	return &Ball{
		Bilateral:   Bilateral{Body0: body0.ID, Body1: body1.ID},
		LocalPivot0: body0.Transform.PointToLocal(pivot),
		LocalPivot1: body1.Transform.PointToLocal(pivot),
	}
}

func (j *Ball) RowCount() int {
	return 3
}

func (j *Ball) JacobianDerivative(desc *Descriptor) {
	pivot0 := desc.Body0.Transform.PointToWorld(j.LocalPivot0)
	pivot1 := desc.Body1.Transform.PointToWorld(j.LocalPivot1)

	for _, dir := range worldAxes {
		desc.AddLinearRow(pivot0, pivot1, dir)
	}
}
