package constraint

import (
	"math"

	"github.com/akmonengine/ligament/actor"
)

// JointID is the stable handle of a joint inside a world
type JointID int32

const InvalidJoint JointID = -1

// Joint is anything that connects two bodies with constraint rows: bilateral
// joints as well as contacts produced by a narrow phase.
type Joint interface {
	// Bodies returns the handles of body 0 and body 1
	Bodies() (actor.BodyID, actor.BodyID)
	// RowCount is the maximum number of rows JacobianDerivative may add
	RowCount() int
	// IsBilateral is false for contacts; the warm start of bilateral rows is clamped to their bounds
	IsBilateral() bool
	// Feedback returns one slot per row, holding the last solved force
	Feedback() []ForceFeedback
	// JacobianDerivative fills the rows of the step
	JacobianDerivative(desc *Descriptor)
}

// ReactionListener is implemented by joints that want the solved row forces after each step
type ReactionListener interface {
	JointReaction(forces []float64, dt float64)
}

// Breakable is implemented by joints that can be removed by the world once broken
type Breakable interface {
	Broken() bool
}

// ForceFeedback stores the solved force of a row between steps
type ForceFeedback struct {
	Force float64
	// Impact is the largest force change seen during the last step
	Impact float64
}

// InitialGuess is the warm start force of the next step
func (f *ForceFeedback) InitialGuess() float64 {
	return f.Force
}

func (f *ForceFeedback) Push(force, impact float64) {
	f.Force = force
	f.Impact = impact
}

// Bilateral is the common part of every joint between two bodies
type Bilateral struct {
	Body0 actor.BodyID
	Body1 actor.BodyID

	// BreakForce removes the joint when a row force exceeds it; 0 means unbreakable
	BreakForce float64

	broken   bool
	feedback [MaxRows]ForceFeedback
}

func (b *Bilateral) Bodies() (actor.BodyID, actor.BodyID) {
	return b.Body0, b.Body1
}

func (b *Bilateral) IsBilateral() bool {
	return true
}

func (b *Bilateral) Feedback() []ForceFeedback {
	return b.feedback[:]
}

func (b *Bilateral) JointReaction(forces []float64, dt float64) {
	if b.BreakForce <= 0 {
		return
	}

	for _, force := range forces {
		if math.Abs(force) > b.BreakForce {
			b.broken = true
			return
		}
	}
}

func (b *Bilateral) Broken() bool {
	return b.broken
}

func ComputeRestitution(matA, matB actor.Material) float64 {
	// Average: if one bounces, the pair bounces half as much
	return (matA.Restitution + matB.Restitution) / 2.0
}

func ComputeStaticFriction(matA, matB actor.Material) float64 {
	// Geometric mean
	return math.Sqrt(matA.StaticFriction * matB.StaticFriction)
}

func ComputeDynamicFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.DynamicFriction * matB.DynamicFriction)
}
