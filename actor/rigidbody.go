package actor

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidMass is returned for a dynamic body whose mass or inertia is not finite and positive
var ErrInvalidMass = errors.New("actor: invalid mass properties")

// BodyID is the stable handle of a body inside a world
type BodyID int32

// InvalidBody is the handle of a body that was never registered
const InvalidBody BodyID = -1

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces and constraints
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They anchor joints and contacts (e.g., ground, walls)
	BodyTypeStatic
)

const (
	// squared acceleration change under which SetForce keeps a resting body asleep
	forceErrTolerance2 = 1.0e-2 * 1.0e-2
	// rotations slower than this are not integrated
	angularTolerance = 0.0125 * math.Pi / 180.0
)

type Material struct {
	Density     float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	StaticFriction  float64
	DynamicFriction float64
	LinearDamping   float64 // 1/s, typical: 0.01
	AngularDamping  float64 // 1/s, typical: 0.05
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// ID is assigned by the world when the body is registered
	ID BodyID

	Transform       Transform
	Velocity        mgl64.Vec3 // Linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // Angular velocity (rad/s), world space

	Material Material
	BodyType BodyType
	Shape    ShapeInterface

	// AutoSleep lets the body take part in island sleeping
	AutoSleep bool
	// ForceCallback is invoked once per step before solving, typically to SetForce/SetTorque
	ForceCallback func(body *RigidBody, dt float64)

	mass            float64
	invMass         float64
	inertia         mgl64.Vec3 // principal moments, local space
	invInertia      mgl64.Vec3
	invInertiaWorld mgl64.Mat3

	force       mgl64.Vec3
	torque      mgl64.Vec3
	savedForce  mgl64.Vec3
	savedTorque mgl64.Vec3

	// velocities at the beginning of the step
	veloc0 mgl64.Vec3
	omega0 mgl64.Vec3

	gyroTorque   mgl64.Vec3
	gyroRotation mgl64.Quat

	equilibrium  bool
	sleepCounter int
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	rb := &RigidBody{
		ID:        InvalidBody,
		Transform: transform,
		Shape:     shape,
		BodyType:  bodyType,
		AutoSleep: true,
	}

	if bodyType == BodyTypeStatic {
		rb.setStatic()
	} else {
		rb.Material.Density = density
		mass := shape.ComputeMass(density)
		rb.setMassMatrix(mass, shape.ComputeInertia(mass))
	}
	rb.UpdateInvInertiaMatrix()

	return rb
}

// NewRigidBodyWithMass creates a dynamic body from explicit mass properties
func NewRigidBodyWithMass(transform Transform, shape ShapeInterface, mass float64, inertia mgl64.Vec3) *RigidBody {
	rb := &RigidBody{
		ID:        InvalidBody,
		Transform: transform,
		Shape:     shape,
		BodyType:  BodyTypeDynamic,
		AutoSleep: true,
	}
	rb.setMassMatrix(mass, inertia)
	rb.UpdateInvInertiaMatrix()

	return rb
}

func (rb *RigidBody) setStatic() {
	rb.mass = math.Inf(1)
	rb.invMass = 0
	rb.inertia = mgl64.Vec3{}
	rb.invInertia = mgl64.Vec3{}
	rb.equilibrium = true
}

func (rb *RigidBody) setMassMatrix(mass float64, inertia mgl64.Vec3) {
	rb.mass = mass
	rb.inertia = inertia
	rb.invMass = 1.0 / mass
	for i := range 3 {
		rb.invInertia[i] = 1.0 / inertia[i]
	}
}

// SetMassMatrix replaces the mass and the principal inertia of a dynamic body
func (rb *RigidBody) SetMassMatrix(mass float64, inertia mgl64.Vec3) error {
	if rb.BodyType == BodyTypeStatic {
		return fmt.Errorf("%w: static body has infinite mass", ErrInvalidMass)
	}
	if err := validateMass(mass, inertia); err != nil {
		return err
	}

	rb.setMassMatrix(mass, inertia)
	rb.UpdateInvInertiaMatrix()
	rb.Wake()

	return nil
}

func validateMass(mass float64, inertia mgl64.Vec3) error {
	if !(mass > 0) || math.IsInf(mass, 0) {
		return fmt.Errorf("%w: mass %v", ErrInvalidMass, mass)
	}
	for i := range 3 {
		if !(inertia[i] > 0) || math.IsInf(inertia[i], 0) {
			return fmt.Errorf("%w: inertia %v", ErrInvalidMass, inertia)
		}
	}

	return nil
}

// Validate checks the mass configuration of the body
func (rb *RigidBody) Validate() error {
	if rb.BodyType == BodyTypeStatic {
		return nil
	}

	return validateMass(rb.mass, rb.inertia)
}

func (rb *RigidBody) IsStatic() bool {
	return rb.BodyType == BodyTypeStatic
}

func (rb *RigidBody) Mass() float64 {
	return rb.mass
}

func (rb *RigidBody) InvMass() float64 {
	return rb.invMass
}

// Inertia returns the principal moments of inertia in local space
func (rb *RigidBody) Inertia() mgl64.Vec3 {
	return rb.inertia
}

// InvInertiaWorld returns the inverse inertia tensor in world space, as of the last UpdateInvInertiaMatrix
func (rb *RigidBody) InvInertiaWorld() mgl64.Mat3 {
	return rb.invInertiaWorld
}

// InertiaWorld returns I_world = R * I_local * R^T
func (rb *RigidBody) InertiaWorld() mgl64.Mat3 {
	if rb.BodyType == BodyTypeStatic {
		return mgl64.Mat3{}
	}

	R := rb.Transform.Matrix()
	return R.Mul3(mgl64.Diag3(rb.inertia)).Mul3(R.Transpose())
}

// UpdateInvInertiaMatrix refreshes I_world^(-1) = R * I_local^(-1) * R^T
func (rb *RigidBody) UpdateInvInertiaMatrix() {
	if rb.BodyType == BodyTypeStatic {
		rb.invInertiaWorld = mgl64.Mat3{}
		return
	}

	R := rb.Transform.Matrix()
	rb.invInertiaWorld = R.Mul3(mgl64.Diag3(rb.invInertia)).Mul3(R.Transpose())
}

func (rb *RigidBody) Force() mgl64.Vec3 {
	return rb.force
}

func (rb *RigidBody) Torque() mgl64.Vec3 {
	return rb.torque
}

// SetForce replaces the external force. A resting body wakes up when the
// change in acceleration exceeds the error tolerance.
func (rb *RigidBody) SetForce(force mgl64.Vec3) {
	if rb.invMass == 0 {
		rb.force = mgl64.Vec3{}
		return
	}

	rb.force = force
	if rb.equilibrium {
		deltaAccel := rb.force.Sub(rb.savedForce).Mul(rb.invMass)
		if deltaAccel.Dot(deltaAccel) > forceErrTolerance2 {
			rb.Wake()
		}
	}
}

// SetTorque replaces the external torque, with the same wake rule as SetForce
func (rb *RigidBody) SetTorque(torque mgl64.Vec3) {
	if rb.invMass == 0 {
		rb.torque = mgl64.Vec3{}
		return
	}

	rb.torque = torque
	if rb.equilibrium {
		deltaAlpha := rb.invInertiaWorld.Mul3x1(rb.torque.Sub(rb.savedTorque))
		if deltaAlpha.Dot(deltaAlpha) > forceErrTolerance2 {
			rb.Wake()
		}
	}
}

func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	rb.SetForce(rb.force.Add(force))
}

func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	rb.SetTorque(rb.torque.Add(torque))
}

func (rb *RigidBody) ClearForces() {
	rb.SetForce(mgl64.Vec3{})
	rb.SetTorque(mgl64.Vec3{})
}

// SaveExternalForces records the forces the wake rule compares against
func (rb *RigidBody) SaveExternalForces() {
	rb.savedForce = rb.force
	rb.savedTorque = rb.torque
}

// ApplyImpulse changes the velocity immediately, as if impulse was applied at point (world space)
func (rb *RigidBody) ApplyImpulse(impulse mgl64.Vec3, point mgl64.Vec3) {
	if rb.invMass == 0 {
		return
	}

	r := point.Sub(rb.Transform.Position)
	rb.Velocity = rb.Velocity.Add(impulse.Mul(rb.invMass))
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.invInertiaWorld.Mul3x1(r.Cross(impulse)))
	rb.Wake()
}

// ApplyAngularImpulse changes the angular velocity immediately
func (rb *RigidBody) ApplyAngularImpulse(impulse mgl64.Vec3) {
	if rb.invMass == 0 {
		return
	}

	rb.AngularVelocity = rb.AngularVelocity.Add(rb.invInertiaWorld.Mul3x1(impulse))
	rb.Wake()
}

// IsSleeping reports the equilibrium flag, set when the body's island is at rest
func (rb *RigidBody) IsSleeping() bool {
	return rb.equilibrium
}

// SleepCounter is the number of consecutive steps the body met the freeze thresholds
func (rb *RigidBody) SleepCounter() int {
	return rb.sleepCounter
}

// Sleep puts the body at rest, with exactly zero velocity
func (rb *RigidBody) Sleep() {
	rb.equilibrium = true
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

// Wake clears the equilibrium flag and restarts the sleep window
func (rb *RigidBody) Wake() {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	rb.equilibrium = false
	rb.sleepCounter = 0
}

// SetEquilibrium overrides the equilibrium flag without touching the sleep window
func (rb *RigidBody) SetEquilibrium(equilibrium bool) {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	rb.equilibrium = equilibrium
}

// ApplyDamping attenuates the velocities exponentially
func (rb *RigidBody) ApplyDamping(dt float64) {
	if rb.Material.LinearDamping > 0 {
		rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))
	}
	if rb.Material.AngularDamping > 0 {
		rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))
	}
}

// PrepareStep stores the step's initial velocities and the gyroscopic state
func (rb *RigidBody) PrepareStep() {
	rb.UpdateInvInertiaMatrix()
	rb.veloc0 = rb.Velocity
	rb.omega0 = rb.AngularVelocity
	rb.gyroRotation = rb.Transform.Rotation

	if rb.BodyType == BodyTypeStatic {
		rb.gyroTorque = mgl64.Vec3{}
		return
	}
	rb.gyroTorque = rb.AngularVelocity.Cross(rb.InertiaWorld().Mul3x1(rb.AngularVelocity))
}

// GyroTorque is ω × Iω as of the last gyroscopic update
func (rb *RigidBody) GyroTorque() mgl64.Vec3 {
	return rb.gyroTorque
}

// IntegrateGyroSubstep advances the rotation used by the gyroscopic
// linearization and refreshes the gyroscopic torque
func (rb *RigidBody) IntegrateGyroSubstep(h float64) {
	omegaMag2 := rb.AngularVelocity.Dot(rb.AngularVelocity)
	if omegaMag2 <= angularTolerance*angularTolerance {
		rb.gyroTorque = mgl64.Vec3{}
		return
	}

	omegaAngle := math.Sqrt(omegaMag2)
	omegaAxis := rb.AngularVelocity.Mul(1.0 / omegaAngle)
	rotationStep := mgl64.QuatRotate(omegaAngle*h, omegaAxis)
	rb.gyroRotation = rotationStep.Mul(rb.gyroRotation).Normalize()

	localOmega := rb.gyroRotation.Conjugate().Rotate(rb.AngularVelocity)
	localGyroTorque := localOmega.Cross(mgl64.Vec3{
		rb.inertia[0] * localOmega[0],
		rb.inertia[1] * localOmega[1],
		rb.inertia[2] * localOmega[2],
	})
	rb.gyroTorque = rb.gyroRotation.Rotate(localGyroTorque)
}

// IntegrateForceAndTorque advances the velocities over h. The angular part
// solves the gyroscopic equation linearized at the current angular velocity
// in the body's local frame.
func (rb *RigidBody) IntegrateForceAndTorque(force, torque mgl64.Vec3, h float64) {
	if rb.invMass == 0 {
		return
	}

	rb.Velocity = rb.Velocity.Add(force.Mul(rb.invMass * h))

	rotation := rb.gyroRotation
	if rotation.Len() == 0 {
		rotation = rb.Transform.Rotation
	}
	inverse := rotation.Conjugate()
	localOmega := inverse.Rotate(rb.AngularVelocity)
	localTorque := inverse.Rotate(torque.Sub(rb.gyroTorque))

	I := rb.inertia
	dw := localOmega.Mul(h)
	jacobian := mgl64.Mat3FromRows(
		mgl64.Vec3{I[0], (I[2] - I[1]) * dw[2], (I[2] - I[1]) * dw[1]},
		mgl64.Vec3{(I[0] - I[2]) * dw[2], I[1], (I[0] - I[2]) * dw[0]},
		mgl64.Vec3{(I[1] - I[0]) * dw[1], (I[1] - I[0]) * dw[0], I[2]},
	)

	gradientStep := jacobian.Inv().Mul3x1(localTorque.Mul(h))
	rb.AngularVelocity = rotation.Rotate(localOmega.Add(gradientStep))
}

// IntegrateVelocity moves the pose along the current velocities
func (rb *RigidBody) IntegrateVelocity(dt float64) {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	omegaMag2 := rb.AngularVelocity.Dot(rb.AngularVelocity)
	if omegaMag2 > angularTolerance*angularTolerance {
		omegaAngle := math.Sqrt(omegaMag2)
		omegaAxis := rb.AngularVelocity.Mul(1.0 / omegaAngle)
		rotationStep := mgl64.QuatRotate(omegaAngle*dt, omegaAxis)
		rb.Transform.Rotation = rotationStep.Mul(rb.Transform.Rotation).Normalize()
	}

	rb.UpdateInvInertiaMatrix()
}

// EvaluateSleepState counts the consecutive steps in which the body stayed
// under the freeze thresholds and sets equilibrium once the window is full
func (rb *RigidBody) EvaluateSleepState(dt, freezeSpeed2, freezeAccel2 float64, sleepFrames int) {
	if rb.BodyType == BodyTypeStatic {
		rb.equilibrium = true
		return
	}

	invDt := 1.0 / dt
	accel := rb.Velocity.Sub(rb.veloc0).Mul(invDt)
	alpha := rb.AngularVelocity.Sub(rb.omega0).Mul(invDt)

	still := accel.Dot(accel) < freezeAccel2 &&
		alpha.Dot(alpha) < freezeAccel2 &&
		rb.Velocity.Dot(rb.Velocity) < freezeSpeed2 &&
		rb.AngularVelocity.Dot(rb.AngularVelocity) < freezeSpeed2

	if still && rb.AutoSleep {
		rb.sleepCounter++
	} else {
		rb.sleepCounter = 0
	}
	rb.equilibrium = rb.AutoSleep && rb.sleepCounter >= sleepFrames
}

// LinearMomentum returns m·v
func (rb *RigidBody) LinearMomentum() mgl64.Vec3 {
	if rb.BodyType == BodyTypeStatic {
		return mgl64.Vec3{}
	}

	return rb.Velocity.Mul(rb.mass)
}

// AngularMomentum returns the angular momentum about the world origin
func (rb *RigidBody) AngularMomentum() mgl64.Vec3 {
	if rb.BodyType == BodyTypeStatic {
		return mgl64.Vec3{}
	}

	orbital := rb.Transform.Position.Cross(rb.Velocity.Mul(rb.mass))
	return orbital.Add(rb.InertiaWorld().Mul3x1(rb.AngularVelocity))
}

func (rb *RigidBody) KineticEnergy() float64 {
	if rb.BodyType == BodyTypeStatic {
		return 0
	}

	linear := 0.5 * rb.mass * rb.Velocity.Dot(rb.Velocity)
	angular := 0.5 * rb.AngularVelocity.Dot(rb.InertiaWorld().Mul3x1(rb.AngularVelocity))

	return linear + angular
}
