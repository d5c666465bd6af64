package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// =============================================================================
// Mass Properties Tests
// =============================================================================

func TestBoxComputeInertia(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}
	mass := box.ComputeMass(0.5)
	if math.Abs(mass-0.5*48) > epsilon {
		t.Fatalf("ComputeMass() = %v, want 24", mass)
	}

	inertia := box.ComputeInertia(12)
	want := mgl64.Vec3{16 + 36, 4 + 36, 4 + 16}
	if !vecNear(inertia, want, epsilon) {
		t.Errorf("ComputeInertia() = %v, want %v", inertia, want)
	}
}

func TestSphereComputeInertia(t *testing.T) {
	sphere := &Sphere{Radius: 2}

	mass := sphere.ComputeMass(3)
	wantMass := 3 * 4.0 / 3.0 * math.Pi * 8
	if math.Abs(mass-wantMass) > 1e-9 {
		t.Errorf("ComputeMass() = %v, want %v", mass, wantMass)
	}

	inertia := sphere.ComputeInertia(5)
	if !vecNear(inertia, mgl64.Vec3{8, 8, 8}, epsilon) {
		t.Errorf("ComputeInertia() = %v, want (8, 8, 8)", inertia)
	}
}

func TestPlaneMassProperties(t *testing.T) {
	plane := &Plane{Normal: mgl64.Vec3{0, 1, 0}}
	if !math.IsInf(plane.ComputeMass(1), 1) {
		t.Error("planes have infinite mass")
	}
	if plane.ComputeInertia(1) != (mgl64.Vec3{}) {
		t.Error("planes have no inertia")
	}
	if colliding, _ := plane.CollideWithPlane(mgl64.Vec3{0, 1, 0}, 0, NewTransform(), 1); colliding {
		t.Error("planes never collide with planes")
	}
}

// =============================================================================
// Plane Contact Tests
// =============================================================================

func TestSphereCollideWithPlane(t *testing.T) {
	sphere := &Sphere{Radius: 0.5}
	up := mgl64.Vec3{0, 1, 0}

	tests := []struct {
		name            string
		height          float64
		wantColliding   bool
		wantPenetration float64
	}{
		{"resting", 0.5, true, 0},
		{"penetrating", 0.4, true, 0.1},
		{"within margin", 0.505, true, -0.005},
		{"separated", 0.6, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			colliding, points := sphere.CollideWithPlane(up, 0, NewTransformAt(mgl64.Vec3{1, tt.height, 2}), 0.01)
			if colliding != tt.wantColliding {
				t.Fatalf("colliding = %v, want %v", colliding, tt.wantColliding)
			}
			if !colliding {
				return
			}
			if len(points) != 1 {
				t.Fatalf("got %d points, want 1", len(points))
			}
			if math.Abs(points[0].Penetration-tt.wantPenetration) > 1e-12 {
				t.Errorf("Penetration = %v, want %v", points[0].Penetration, tt.wantPenetration)
			}
			// the point lies on the plane
			if math.Abs(points[0].Position.Y()) > 1e-12 {
				t.Errorf("Position = %v, want y = 0", points[0].Position)
			}
		})
	}
}

func TestBoxCollideWithPlane(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{0.5, 0.25, 0.5}}
	up := mgl64.Vec3{0, 1, 0}

	colliding, points := box.CollideWithPlane(up, 0, NewTransformAt(mgl64.Vec3{0, 0.25, 0}), 0.01)
	if !colliding || len(points) != 4 {
		t.Fatalf("flat box: colliding = %v with %d points, want 4", colliding, len(points))
	}
	for _, p := range points {
		if math.Abs(p.Penetration) > 1e-12 || math.Abs(p.Position.Y()) > 1e-12 {
			t.Errorf("point %v penetration %v, want on the plane", p.Position, p.Penetration)
		}
	}

	// tilted around z and lifted, no corner reaches the plane
	tilted := NewTransformAt(mgl64.Vec3{0, 1, 0})
	tilted.Rotation = mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})
	if colliding, _ := box.CollideWithPlane(up, 0, tilted, 0.01); colliding {
		t.Error("a box one unit above the plane should not collide")
	}
}

func TestTangentBasis(t *testing.T) {
	normals := []mgl64.Vec3{
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, -1},
		mgl64.Vec3{1, 1, 1}.Normalize(),
		mgl64.Vec3{0.95, 0.1, 0}.Normalize(),
	}

	for _, n := range normals {
		t1, t2 := TangentBasis(n)
		if math.Abs(t1.Len()-1) > 1e-12 || math.Abs(t2.Len()-1) > 1e-12 {
			t.Errorf("normal %v: tangents not unit: %v %v", n, t1.Len(), t2.Len())
		}
		if math.Abs(t1.Dot(n)) > 1e-12 || math.Abs(t2.Dot(n)) > 1e-12 || math.Abs(t1.Dot(t2)) > 1e-12 {
			t.Errorf("normal %v: basis not orthogonal: %v %v", n, t1, t2)
		}
	}
}

// =============================================================================
// Transform Tests
// =============================================================================

func TestTransform_RoundTrip(t *testing.T) {
	transform := NewTransformAt(mgl64.Vec3{1, -2, 3})
	transform.Rotation = mgl64.QuatRotate(0.7, mgl64.Vec3{1, 2, 3}.Normalize())

	local := mgl64.Vec3{0.3, 0.2, -0.1}
	world := transform.PointToWorld(local)
	if !vecNear(transform.PointToLocal(world), local, 1e-12) {
		t.Errorf("PointToLocal(PointToWorld(p)) = %v, want %v", transform.PointToLocal(world), local)
	}

	direction := mgl64.Vec3{0, 0, 1}
	if !vecNear(transform.DirectionToLocal(transform.DirectionToWorld(direction)), direction, 1e-12) {
		t.Error("direction round trip failed")
	}

	matrix := transform.Matrix()
	if !vecNear(matrix.Mul3x1(local), transform.DirectionToWorld(local), 1e-12) {
		t.Error("Matrix() disagrees with the quaternion rotation")
	}
}
