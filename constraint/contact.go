package constraint

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxContactPoints is the number of points that fit the row budget: a normal and two friction rows each
	MaxContactPoints = MaxRows / 3

	// tangential speed over which the dynamic friction coefficient is used
	slipSpeed = 0.01
)

// Contact is a unilateral constraint between two touching bodies, produced
// by a narrow phase. Normal points from body A to body B. Points are owned
// by the narrow phase and may be replaced between steps with SetPoints.
type Contact struct {
	BodyA  actor.BodyID
	BodyB  actor.BodyID
	Normal mgl64.Vec3
	Points []actor.ContactPoint

	StaticFriction  float64
	DynamicFriction float64
	Restitution     float64
	// Stiffness overrides the world's contact stiffness when positive
	Stiffness float64

	feedback [MaxRows]ForceFeedback
}

// NewContact creates a contact whose coefficients are mixed from both bodies' materials
func NewContact(bodyA, bodyB *actor.RigidBody, normal mgl64.Vec3, points []actor.ContactPoint) *Contact {
	return &Contact{
		BodyA:           bodyA.ID,
		BodyB:           bodyB.ID,
		Normal:          normal.Normalize(),
		Points:          points,
		StaticFriction:  ComputeStaticFriction(bodyA.Material, bodyB.Material),
		DynamicFriction: ComputeDynamicFriction(bodyA.Material, bodyB.Material),
		Restitution:     ComputeRestitution(bodyA.Material, bodyB.Material),
	}
}

func (c *Contact) Bodies() (actor.BodyID, actor.BodyID) {
	return c.BodyA, c.BodyB
}

func (c *Contact) IsBilateral() bool {
	return false
}

func (c *Contact) Feedback() []ForceFeedback {
	return c.feedback[:]
}

func (c *Contact) RowCount() int {
	return 3 * min(len(c.Points), MaxContactPoints)
}

// SetPoints replaces the contact geometry. The warm start of each row is kept.
func (c *Contact) SetPoints(normal mgl64.Vec3, points []actor.ContactPoint) {
	c.Normal = normal.Normalize()
	c.Points = points
}

// NormalForce is the sum of the normal forces solved during the last step
func (c *Contact) NormalForce() float64 {
	var total float64
	for i := range min(len(c.Points), MaxContactPoints) {
		total += c.feedback[3*i].Force
	}

	return total
}

// FrictionForce returns the two friction forces of point i solved during the last step
func (c *Contact) FrictionForce(i int) (float64, float64) {
	if i < 0 || i >= MaxContactPoints {
		return 0, 0
	}

	return c.feedback[3*i+1].Force, c.feedback[3*i+2].Force
}

func (c *Contact) JacobianDerivative(desc *Descriptor) {
	tangent1, tangent2 := actor.TangentBasis(c.Normal)
	bodyA := desc.Body0
	bodyB := desc.Body1

	for _, point := range c.Points[:min(len(c.Points), MaxContactPoints)] {
		// J_A = (-n, -(rA×n)), J_B = (n, rB×n): the row measures the separation speed
		normal := desc.AddLinearRow(point.Position, point.Position, c.Normal.Mul(-1))
		if normal < 0 {
			return
		}
		desc.SetPenetration(normal, point.Penetration)
		desc.SetBounds(normal, 0, MaxBound)
		desc.SetRestitution(normal, c.Restitution)
		switch {
		case point.Penetration <= 0:
			// speculative: allow closing the gap, nothing more
			desc.SetStiffness(normal, 1)
		case c.Stiffness > 0:
			desc.SetStiffness(normal, c.Stiffness)
		}

		rA := point.Position.Sub(bodyA.Transform.Position)
		rB := point.Position.Sub(bodyB.Transform.Position)
		velocityA := bodyA.Velocity.Add(bodyA.AngularVelocity.Cross(rA))
		velocityB := bodyB.Velocity.Add(bodyB.AngularVelocity.Cross(rB))
		relative := velocityB.Sub(velocityA)
		tangential := relative.Sub(c.Normal.Mul(relative.Dot(c.Normal)))

		friction := c.StaticFriction
		if tangential.Len() > slipSpeed {
			friction = c.DynamicFriction
		}

		for _, tangent := range [2]mgl64.Vec3{tangent1, tangent2} {
			row := desc.AddLinearRow(point.Position, point.Position, tangent)
			desc.SetStiffness(row, 0)
			desc.SetBounds(row, -friction, friction)
			desc.SetNormalIndex(row, normal)
		}
	}
}
