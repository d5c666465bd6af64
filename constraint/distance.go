package constraint

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Distance keeps two points at a fixed distance from each other. When
// MaxLength is greater than MinLength the joint behaves like a rope with a
// slack range instead, and only acts outside [MinLength, MaxLength].
type Distance struct {
	Bilateral
	LocalPivot0 mgl64.Vec3
	LocalPivot1 mgl64.Vec3
	Length      float64

	MinLength float64
	MaxLength float64
}

// NewDistance keeps pivot0 and pivot1 (world space) at their current distance
func NewDistance(body0, body1 *actor.RigidBody, pivot0, pivot1 mgl64.Vec3) *Distance {
	return &Distance{
		Bilateral:   Bilateral{Body0: body0.ID, Body1: body1.ID},
		LocalPivot0: body0.Transform.PointToLocal(pivot0),
		LocalPivot1: body1.Transform.PointToLocal(pivot1),
		Length:      pivot0.Sub(pivot1).Len(),
	}
}

// SetRange turns the joint into a range joint
func (j *Distance) SetRange(minLength, maxLength float64) {
	j.MinLength = minLength
	j.MaxLength = maxLength
}

func (j *Distance) RowCount() int {
	return 1
}

func (j *Distance) JacobianDerivative(desc *Descriptor) {
	pivot0 := desc.Body0.Transform.PointToWorld(j.LocalPivot0)
	pivot1 := desc.Body1.Transform.PointToWorld(j.LocalPivot1)

	delta := pivot0.Sub(pivot1)
	length := delta.Len()
	dir := mgl64.Vec3{0, 1, 0}
	if length > 1.0e-9 {
		dir = delta.Mul(1.0 / length)
	}

	if j.MaxLength <= j.MinLength {
		row := desc.AddLinearRow(pivot0, pivot1, dir)
		desc.SetPenetration(row, j.Length-length)
		return
	}

	switch {
	case length < j.MinLength:
		// push apart only
		row := desc.AddLinearRow(pivot0, pivot1, dir)
		desc.SetPenetration(row, j.MinLength-length)
		desc.SetBounds(row, 0, MaxBound)
	case length > j.MaxLength:
		row := desc.AddLinearRow(pivot0, pivot1, dir)
		desc.SetPenetration(row, j.MaxLength-length)
		desc.SetBounds(row, MinBound, 0)
	}
}
