package constraint

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Weld removes every relative degree of freedom between the two bodies
type Weld struct {
	Bilateral
	LocalPivot0 mgl64.Vec3
	LocalPivot1 mgl64.Vec3

	// rotation of body 0 expressed in the frame of body 1 when welded
	relativeRotation mgl64.Quat
}

func NewWeld(body0, body1 *actor.RigidBody, pivot mgl64.Vec3) *Weld {
	return &Weld{
		Bilateral:        Bilateral{Body0: body0.ID, Body1: body1.ID},
		LocalPivot0:      body0.Transform.PointToLocal(pivot),
		LocalPivot1:      body1.Transform.PointToLocal(pivot),
		relativeRotation: body1.Transform.Rotation.Conjugate().Mul(body0.Transform.Rotation),
	}
}

func (j *Weld) RowCount() int {
	return 6
}

func (j *Weld) JacobianDerivative(desc *Descriptor) {
	pivot0 := desc.Body0.Transform.PointToWorld(j.LocalPivot0)
	pivot1 := desc.Body1.Transform.PointToWorld(j.LocalPivot1)
	for _, dir := range worldAxes {
		desc.AddLinearRow(pivot0, pivot1, dir)
	}

	// rotation taking the welded orientation of body 0 to its current one
	target := desc.Body1.Transform.Rotation.Mul(j.relativeRotation)
	errorRotation := desc.Body0.Transform.Rotation.Mul(target.Conjugate())
	if errorRotation.W < 0 {
		errorRotation = errorRotation.Scale(-1)
	}
	angleError := errorRotation.V.Mul(2)

	for i, axis := range worldAxes {
		desc.AddAngularRow(axis, angleError[i])
	}
}
