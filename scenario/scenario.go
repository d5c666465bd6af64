// Package scenario builds small reference scenes on top of a ligament world:
// a hinge at rest, a body resting on the ground, a skeleton pendulum, a
// hanging chain and a box sliding to a stop.
package scenario

import (
	"errors"
	"fmt"
	"slices"

	"github.com/akmonengine/ligament"
	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

var ErrUnknownScene = errors.New("scenario: unknown scene")

const standardGravity = 9.81

// Scene is a world ready to be stepped, with the probes of the scene
type Scene struct {
	Name        string
	Description string
	World       *ligament.World
	// Bodies are the dynamic bodies whose energy is tracked
	Bodies []*actor.RigidBody
	// Joints are the joints created by the scene, Probe is the one whose force is reported
	Joints []constraint.Joint
	Probe  constraint.Joint
	Ground *Ground
	// Scale is the energy scale of the scene, Σ m·g·L
	Scale float64
}

type builder struct {
	description string
	build       func(s *Scene) error
}

var scenes = map[string]builder{
	"hinge":    {"two boxes joined by a hinge, at rest without gravity", buildHinge},
	"contact":  {"a sphere resting on the ground", buildContact},
	"pendulum": {"a two-link pendulum solved as a skeleton", buildPendulum},
	"chain":    {"a chain of spheres joined by ball joints, released horizontally", buildChain},
	"slide":    {"a box sliding on the ground until friction stops it", buildSlide},
}

// Names returns the scene names, sorted
func Names() []string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Describe returns the one-line description of a scene
func Describe(name string) string {
	return scenes[name].description
}

// Build creates the world of the named scene
func Build(name string, cfg *ligament.Config) (*Scene, error) {
	b, ok := scenes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}

	world, err := ligament.NewWorld(cfg)
	if err != nil {
		return nil, err
	}
	world.Gravity = mgl64.Vec3{0, -standardGravity, 0}

	s := &Scene{Name: name, Description: b.description, World: world}
	if err := b.build(s); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	return s, nil
}

// Step advances the scene by dt
func (s *Scene) Step(dt float64) error {
	return s.World.Update(dt)
}

func (s *Scene) KineticEnergy() float64 {
	var energy float64
	for _, body := range s.Bodies {
		energy += body.KineticEnergy()
	}

	return energy
}

// PotentialEnergy is the gravitational energy relative to the origin
func (s *Scene) PotentialEnergy() float64 {
	var energy float64
	for _, body := range s.Bodies {
		energy -= body.Mass() * s.World.Gravity.Dot(body.Transform.Position)
	}

	return energy
}

func (s *Scene) Energy() float64 {
	return s.KineticEnergy() + s.PotentialEnergy()
}

// ProbeForce is the largest row force of the probe joint at the last step
func (s *Scene) ProbeForce() float64 {
	if s.Probe == nil {
		return 0
	}

	var force float64
	for _, feedback := range s.Probe.Feedback()[:s.Probe.RowCount()] {
		force = max(force, feedback.Force, -feedback.Force)
	}

	return force
}

func (s *Scene) addBody(body *actor.RigidBody, tracked bool) error {
	if _, err := s.World.AddBody(body); err != nil {
		return err
	}
	if tracked {
		s.Bodies = append(s.Bodies, body)
	}

	return nil
}

func (s *Scene) addJoint(joint constraint.Joint) (constraint.JointID, error) {
	id, err := s.World.AddJoint(joint)
	if err != nil {
		return id, err
	}
	s.Joints = append(s.Joints, joint)

	return id, nil
}

func (s *Scene) addGround(material actor.Material) error {
	ground, err := NewGround(s.World, mgl64.Vec3{0, 1, 0}, 0, material)
	if err != nil {
		return err
	}
	s.Ground = ground
	s.World.Narrowphase = ground.Update

	return nil
}
