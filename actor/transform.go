package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
	}
}

// NewTransformAt creates a transform at position with an identity rotation
func NewTransformAt(position mgl64.Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: mgl64.QuatIdent(),
	}
}

func (t Transform) PointToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(local).Add(t.Position)
}

func (t Transform) PointToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(world.Sub(t.Position))
}

func (t Transform) DirectionToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(local)
}

func (t Transform) DirectionToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(world)
}

// Matrix returns the rotation part as a 3x3 matrix
func (t Transform) Matrix() mgl64.Mat3 {
	return t.Rotation.Mat4().Mat3()
}
