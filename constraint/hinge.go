package constraint

import (
	"math"

	"github.com/akmonengine/ligament/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Hinge allows a single rotation about an axis, with optional angle limits and a motor
type Hinge struct {
	Bilateral
	LocalPivot0 mgl64.Vec3
	LocalPivot1 mgl64.Vec3
	LocalAxis0  mgl64.Vec3
	LocalAxis1  mgl64.Vec3

	EnableLimits bool
	MinAngle     float64
	MaxAngle     float64

	EnableMotor    bool
	MotorSpeed     float64 // rad/s, body 0 relative to body 1
	MaxMotorTorque float64

	localRef0 mgl64.Vec3
	localRef1 mgl64.Vec3
	angle     float64
	motorRow  int
	// limit is -1 past MinAngle, +1 past MaxAngle, 0 inside the range
	limit int
}

// NewHinge creates a hinge at pivot rotating about axis, both in world space
func NewHinge(body0, body1 *actor.RigidBody, pivot, axis mgl64.Vec3) *Hinge {
	axis = axis.Normalize()
	ref, _ := actor.TangentBasis(axis)

	return &Hinge{
		Bilateral:   Bilateral{Body0: body0.ID, Body1: body1.ID},
		LocalPivot0: body0.Transform.PointToLocal(pivot),
		LocalPivot1: body1.Transform.PointToLocal(pivot),
		LocalAxis0:  body0.Transform.DirectionToLocal(axis),
		LocalAxis1:  body1.Transform.DirectionToLocal(axis),
		localRef0:   body0.Transform.DirectionToLocal(ref),
		localRef1:   body1.Transform.DirectionToLocal(ref),
		motorRow:    -1,
	}
}

// hingeLockedRows is the number of rows that hold the hinge together
const hingeLockedRows = 5

func (j *Hinge) RowCount() int {
	count := hingeLockedRows
	if j.EnableLimits {
		count++
	}
	if j.EnableMotor {
		count++
	}

	return count
}

// Angle is the rotation of body 0 relative to body 1 at the last step
func (j *Hinge) Angle() float64 {
	return j.angle
}

// MotorTorque is the torque the motor applied during the last step
func (j *Hinge) MotorTorque() float64 {
	if j.motorRow < 0 {
		return 0
	}

	return j.feedback[j.motorRow].Force
}

func (j *Hinge) JacobianDerivative(desc *Descriptor) {
	pivot0 := desc.Body0.Transform.PointToWorld(j.LocalPivot0)
	pivot1 := desc.Body1.Transform.PointToWorld(j.LocalPivot1)
	for _, dir := range worldAxes {
		desc.AddLinearRow(pivot0, pivot1, dir)
	}

	axis0 := desc.Body0.Transform.DirectionToWorld(j.LocalAxis0)
	axis1 := desc.Body1.Transform.DirectionToWorld(j.LocalAxis1)

	// axis1 × axis0 is the misalignment of body 0, perpendicular to the hinge
	misalignment := axis1.Cross(axis0)
	tangent1, tangent2 := actor.TangentBasis(axis1)
	desc.AddAngularRow(tangent1, misalignment.Dot(tangent1))
	desc.AddAngularRow(tangent2, misalignment.Dot(tangent2))

	ref0 := desc.Body0.Transform.DirectionToWorld(j.localRef0)
	ref1 := desc.Body1.Transform.DirectionToWorld(j.localRef1)
	j.angle = math.Atan2(ref1.Cross(ref0).Dot(axis1), ref1.Dot(ref0))

	limit := 0
	if j.EnableLimits {
		if j.angle < j.MinAngle {
			limit = -1
		} else if j.angle > j.MaxAngle {
			limit = 1
		}
	}
	// the limit and motor rows move when the limit engages or changes side:
	// drop their warm start
	if limit != j.limit {
		clear(j.feedback[hingeLockedRows:])
		j.limit = limit
	}

	switch limit {
	case -1:
		row := desc.AddAngularRow(axis1, j.angle-j.MinAngle)
		desc.SetBounds(row, 0, MaxBound)
	case 1:
		row := desc.AddAngularRow(axis1, j.angle-j.MaxAngle)
		desc.SetBounds(row, MinBound, 0)
	}

	j.motorRow = -1
	if j.EnableMotor {
		row := desc.AddAngularRow(axis1, 0)
		desc.SetStiffness(row, 0)
		desc.SetSpeed(row, j.MotorSpeed)
		desc.SetBounds(row, -j.MaxMotorTorque, j.MaxMotorTorque)
		j.motorRow = row
	}
}
