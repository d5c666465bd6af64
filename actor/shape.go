package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of a body shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypePlane
)

// ContactPoint is a point generated against a plane, in world space.
// Penetration is positive when the shape overlaps the plane.
type ContactPoint struct {
	Position    mgl64.Vec3
	Penetration float64
}

// ShapeInterface is the interface that all body shapes must implement.
// Shapes only provide mass properties and the plane query used by the
// scenario contact provider; general intersection is left to the caller.
type ShapeInterface interface {
	Type() ShapeType
	// ComputeMass calculates the mass of the shape given a density
	ComputeMass(density float64) float64
	// ComputeInertia returns the principal moments of inertia in local space
	ComputeInertia(mass float64) mgl64.Vec3
	// CollideWithPlane returns the points of the shape closer than margin to
	// the plane Normal·p + Distance = 0
	CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []ContactPoint)
}

// Box represents an oriented box shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b *Box) Type() ShapeType {
	return ShapeTypeBox
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Vec3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (d1² + d2²)
	factor := mass / 12.0

	return mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	}
}

func (b *Box) corners() [8]mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	return [8]mgl64.Vec3{
		{-hx, -hy, -hz},
		{+hx, -hy, -hz},
		{-hx, +hy, -hz},
		{+hx, +hy, -hz},
		{-hx, -hy, +hz},
		{+hx, -hy, +hz},
		{-hx, +hy, +hz},
		{+hx, +hy, +hz},
	}
}

// CollideWithPlane reports every corner within margin of the plane, projected on it
func (b *Box) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []ContactPoint) {
	var points []ContactPoint

	for _, corner := range b.corners() {
		world := transform.PointToWorld(corner)
		d := normal.Dot(world) + distance
		if d > margin {
			continue
		}

		points = append(points, ContactPoint{
			Position:    world.Sub(normal.Mul(d)),
			Penetration: -d,
		})
	}

	return len(points) > 0, points
}

// Sphere represents a spherical shape
type Sphere struct {
	Radius float64
}

func (s *Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	// Volume of sphere = (4/3) * π * r³
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.Radius, 3)

	return density * volume
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Vec3 {
	// I = (2/5) * m * r², identical on every axis
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius

	return mgl64.Vec3{i, i, i}
}

func (s *Sphere) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []ContactPoint) {
	d := normal.Dot(transform.Position) + distance - s.Radius
	if d > margin {
		return false, nil
	}

	return true, []ContactPoint{{
		Position:    transform.Position.Sub(normal.Mul(s.Radius + d)),
		Penetration: -d,
	}}
}

// Plane represents an infinite plane shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal
type Plane struct {
	Normal   mgl64.Vec3
	Distance float64
}

func (p *Plane) Type() ShapeType {
	return ShapeTypePlane
}

// ComputeMass calculates mass data for the plane
// Planes are always static with infinite mass
func (p *Plane) ComputeMass(density float64) float64 {
	return math.Inf(1)
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (p *Plane) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []ContactPoint) {
	return false, nil
}

// TangentBasis returns two unit vectors orthogonal to normal and to each other
func TangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var tangent1 mgl64.Vec3
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	} else {
		tangent1 = mgl64.Vec3{1, 0, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
