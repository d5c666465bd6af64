package scenario

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
	"github.com/akmonengine/ligament/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	pendulumLength = 1.0
	pendulumMass   = 1.0
	chainLinks     = 8
	chainSpacing   = 0.5
)

func buildHinge(s *Scene) error {
	s.World.Gravity = mgl64.Vec3{}

	shape := &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}
	left := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{-0.5, 0, 0}), shape, actor.BodyTypeDynamic, 1.0)
	right := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0.5, 0, 0}), shape, actor.BodyTypeDynamic, 1.0)
	for _, body := range []*actor.RigidBody{left, right} {
		if err := s.addBody(body, true); err != nil {
			return err
		}
	}

	hinge := constraint.NewHinge(left, right, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1})
	if _, err := s.addJoint(hinge); err != nil {
		return err
	}
	s.Probe = hinge
	s.Scale = left.Mass() * standardGravity * 1.0

	return nil
}

func buildContact(s *Scene) error {
	if err := s.addGround(actor.Material{StaticFriction: 0.6, DynamicFriction: 0.4}); err != nil {
		return err
	}

	sphere := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 0.5, 0}), &actor.Sphere{Radius: 0.5}, actor.BodyTypeDynamic, 1.0)
	sphere.Material = actor.Material{StaticFriction: 0.6, DynamicFriction: 0.4}
	if err := s.addBody(sphere, true); err != nil {
		return err
	}
	s.Ground.Track(sphere)

	// the contact joint is created by the first step
	if err := s.Ground.Update(s.World); err != nil {
		return err
	}
	s.Probe = s.Ground.Contact(sphere)
	s.Joints = append(s.Joints, s.Probe)
	s.Scale = sphere.Mass() * standardGravity * 0.5

	return nil
}

// buildPendulum hangs two point-like spheres from a static anchor, released horizontally
func buildPendulum(s *Scene) error {
	anchor := actor.NewRigidBody(actor.NewTransform(), &actor.Sphere{Radius: 0.05}, actor.BodyTypeStatic, 0)
	if err := s.addBody(anchor, false); err != nil {
		return err
	}

	skel := skeleton.New(anchor.ID)
	parent := anchor
	for i := range 2 {
		shape := &actor.Sphere{Radius: 0.05}
		position := mgl64.Vec3{pendulumLength * float64(i+1), 0, 0}
		link := actor.NewRigidBodyWithMass(actor.NewTransformAt(position), shape, pendulumMass, shape.ComputeInertia(pendulumMass))
		link.AutoSleep = false
		if err := s.addBody(link, true); err != nil {
			return err
		}

		// body 0 is the link, body 1 the body it hangs from
		ball := constraint.NewBall(link, parent, parent.Transform.Position)
		id, err := s.addJoint(ball)
		if err != nil {
			return err
		}
		if _, err := skel.AddLink(link.ID, id, i-1); err != nil {
			return err
		}

		s.Scale += pendulumMass * standardGravity * pendulumLength
		parent = link
	}
	s.Probe = s.Joints[0]

	return s.World.AddSkeleton(skel)
}

// buildChain is solved by the iterative solver only
func buildChain(s *Scene) error {
	anchor := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 2, 0}), &actor.Sphere{Radius: 0.1}, actor.BodyTypeStatic, 0)
	if err := s.addBody(anchor, false); err != nil {
		return err
	}

	parent := anchor
	for i := range chainLinks {
		position := anchor.Transform.Position.Add(mgl64.Vec3{chainSpacing * float64(i+1), 0, 0})
		link := actor.NewRigidBody(actor.NewTransformAt(position), &actor.Sphere{Radius: 0.1}, actor.BodyTypeDynamic, 100.0)
		link.Material.AngularDamping = 0.05
		if err := s.addBody(link, true); err != nil {
			return err
		}

		pivot := position.Sub(mgl64.Vec3{chainSpacing / 2, 0, 0})
		ball := constraint.NewBall(link, parent, pivot)
		if _, err := s.addJoint(ball); err != nil {
			return err
		}

		s.Scale += link.Mass() * standardGravity * chainSpacing * float64(i+1)
		parent = link
	}
	s.Probe = s.Joints[0]

	return nil
}

func buildSlide(s *Scene) error {
	material := actor.Material{StaticFriction: 0.5, DynamicFriction: 0.3}
	if err := s.addGround(material); err != nil {
		return err
	}

	shape := &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.25, 0.5}}
	box := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 0.25, 0}), shape, actor.BodyTypeDynamic, 1.0)
	box.Material = material
	box.Velocity = mgl64.Vec3{3, 0, 0}
	if err := s.addBody(box, true); err != nil {
		return err
	}
	s.Ground.Track(box)

	if err := s.Ground.Update(s.World); err != nil {
		return err
	}
	s.Probe = s.Ground.Contact(box)
	s.Joints = append(s.Joints, s.Probe)
	s.Scale = box.Mass() * standardGravity * 0.25

	return nil
}

// SlideDistance is the distance a body sliding at speed stops in under dynamic friction mu
func SlideDistance(speed, mu float64) float64 {
	return speed * speed / (2 * mu * standardGravity)
}
