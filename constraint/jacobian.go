package constraint

import "github.com/go-gl/mathgl/mgl64"

// Jacobian is a 6-dimensional spatial vector: a linear and an angular part.
// It holds Jacobian rows as well as forces/torques and velocities.
type Jacobian struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

// JacobianPair holds the Jacobian of one row on both bodies
type JacobianPair struct {
	Body0 Jacobian
	Body1 Jacobian
}

func (j Jacobian) Dot(o Jacobian) float64 {
	return j.Linear.Dot(o.Linear) + j.Angular.Dot(o.Angular)
}

func (j Jacobian) Add(o Jacobian) Jacobian {
	return Jacobian{Linear: j.Linear.Add(o.Linear), Angular: j.Angular.Add(o.Angular)}
}

func (j Jacobian) Sub(o Jacobian) Jacobian {
	return Jacobian{Linear: j.Linear.Sub(o.Linear), Angular: j.Angular.Sub(o.Angular)}
}

func (j Jacobian) Scale(s float64) Jacobian {
	return Jacobian{Linear: j.Linear.Mul(s), Angular: j.Angular.Mul(s)}
}

// MulAdd returns j + o*s
func (j Jacobian) MulAdd(o Jacobian, s float64) Jacobian {
	return Jacobian{
		Linear:  j.Linear.Add(o.Linear.Mul(s)),
		Angular: j.Angular.Add(o.Angular.Mul(s)),
	}
}

// Velocity of a body as a spatial vector
func Velocity(linear, angular mgl64.Vec3) Jacobian {
	return Jacobian{Linear: linear, Angular: angular}
}
