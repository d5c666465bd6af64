package scenario

import (
	"github.com/akmonengine/ligament"
	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// contactMargin keeps a contact alive slightly before the shapes touch
const contactMargin = 0.01

type groundContact struct {
	id      constraint.JointID
	contact *constraint.Contact
}

// Ground is a static plane and the contact provider of the bodies resting on it.
// It stands in for a narrow phase: every step it refreshes one contact joint
// per tracked body touching the plane.
type Ground struct {
	Body     *actor.RigidBody
	Normal   mgl64.Vec3
	Distance float64

	tracked  []*actor.RigidBody
	contacts map[actor.BodyID]groundContact
}

// NewGround registers a static plane Normal·p + Distance = 0
func NewGround(w *ligament.World, normal mgl64.Vec3, distance float64, material actor.Material) (*Ground, error) {
	normal = normal.Normalize()
	plane := &actor.Plane{Normal: normal, Distance: distance}
	body := actor.NewRigidBody(actor.NewTransformAt(normal.Mul(-distance)), plane, actor.BodyTypeStatic, 0)
	body.Material = material
	if _, err := w.AddBody(body); err != nil {
		return nil, err
	}

	return &Ground{
		Body:     body,
		Normal:   normal,
		Distance: distance,
		contacts: make(map[actor.BodyID]groundContact),
	}, nil
}

// Track adds body to the bodies tested against the plane
func (g *Ground) Track(body *actor.RigidBody) {
	g.tracked = append(g.tracked, body)
}

// Contact returns the live contact of body, or nil
func (g *Ground) Contact(body *actor.RigidBody) *constraint.Contact {
	if c, ok := g.contacts[body.ID]; ok {
		return c.contact
	}

	return nil
}

// Update is a ligament.World narrow phase hook
func (g *Ground) Update(w *ligament.World) error {
	for _, body := range g.tracked {
		colliding, points := body.Shape.CollideWithPlane(g.Normal, g.Distance, body.Transform, contactMargin)
		current, exists := g.contacts[body.ID]

		switch {
		case colliding && exists:
			current.contact.SetPoints(g.Normal, points)
		case colliding:
			contact := constraint.NewContact(g.Body, body, g.Normal, points)
			id, err := w.AddJoint(contact)
			if err != nil {
				return err
			}
			g.contacts[body.ID] = groundContact{id: id, contact: contact}
		case exists:
			if err := w.RemoveJoint(current.id); err != nil {
				return err
			}
			delete(g.contacts, body.ID)
		}
	}

	return nil
}
