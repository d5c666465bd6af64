package ligament

import (
	"errors"
	"fmt"

	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
	"github.com/akmonengine/ligament/skeleton"
)

// Registration and input errors
var (
	// ErrInvalidTimestep is returned by Update for a timestep that is not finite and positive
	ErrInvalidTimestep = errors.New("ligament: invalid timestep")

	// ErrInvalidConfig is returned by NewWorld and LoadConfig for out of range settings
	ErrInvalidConfig = errors.New("ligament: invalid configuration")

	// ErrUnknownBody is returned when a handle does not name a live body
	ErrUnknownBody = errors.New("ligament: unknown body")

	// ErrUnknownJoint is returned when a handle does not name a live joint
	ErrUnknownJoint = errors.New("ligament: unknown joint")

	// ErrBodyRegistered is returned when a body is added twice
	ErrBodyRegistered = errors.New("ligament: body already registered")

	// ErrJointRegistered is returned when a joint is added twice
	ErrJointRegistered = errors.New("ligament: joint already registered")

	// ErrBodyReferenced is returned when removing a body that live joints still use
	ErrBodyReferenced = errors.New("ligament: body referenced by a joint")

	// ErrStaticJoint is returned for a joint between two static bodies
	ErrStaticJoint = errors.New("ligament: joint between two static bodies")

	// ErrSameBody is returned for a joint connecting a body to itself
	ErrSameBody = errors.New("ligament: joint connects a body to itself")

	// ErrTooManyRows is returned for a joint declaring more rows than constraint.MaxRows
	ErrTooManyRows = errors.New("ligament: joint declares too many rows")

	// ErrInvalidMass is returned for a dynamic body without finite positive mass and inertia
	ErrInvalidMass = actor.ErrInvalidMass

	// ErrSkeletonTopology is returned when a skeleton is not a tree of registered joints
	ErrSkeletonTopology = skeleton.ErrTopology
)

// JointError wraps a registration error with the offending joint
type JointError struct {
	Joint   constraint.JointID
	Wrapped error
}

func (e *JointError) Error() string {
	return fmt.Sprintf("joint %d: %v", e.Joint, e.Wrapped)
}

func (e *JointError) Unwrap() error {
	return e.Wrapped
}
