package constraint

import (
	"math"
	"testing"

	"github.com/akmonengine/ligament/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-9

func createBody(id actor.BodyID, position mgl64.Vec3, bodyType actor.BodyType) *actor.RigidBody {
	rb := actor.NewRigidBody(actor.NewTransformAt(position), &actor.Sphere{Radius: 0.5}, bodyType, 1.0)
	rb.ID = id
	return rb
}

func createDescriptor(body0, body1 *actor.RigidBody, capacity int) *Descriptor {
	desc := &Descriptor{}
	desc.Reset(body0, body1, 1.0/60.0, capacity, 0.2)
	return desc
}

// =============================================================================
// Material Mixing Tests
// =============================================================================

func TestComputeRestitution(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"both zero", 0, 0, 0},
		{"both one", 1, 1, 1},
		{"average", 0.2, 0.8, 0.5},
		{"one bouncy", 1, 0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRestitution(actor.Material{Restitution: tt.a}, actor.Material{Restitution: tt.b})
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("ComputeRestitution() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeFriction(t *testing.T) {
	tests := []struct {
		name        string
		a, b        actor.Material
		wantStatic  float64
		wantDynamic float64
	}{
		{
			name:        "geometric mean",
			a:           actor.Material{StaticFriction: 0.4, DynamicFriction: 0.2},
			b:           actor.Material{StaticFriction: 0.9, DynamicFriction: 0.8},
			wantStatic:  0.6,
			wantDynamic: 0.4,
		},
		{
			name:        "frictionless side",
			a:           actor.Material{StaticFriction: 0, DynamicFriction: 0},
			b:           actor.Material{StaticFriction: 1, DynamicFriction: 1},
			wantStatic:  0,
			wantDynamic: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeStaticFriction(tt.a, tt.b); math.Abs(got-tt.wantStatic) > epsilon {
				t.Errorf("ComputeStaticFriction() = %v, want %v", got, tt.wantStatic)
			}
			if got := ComputeDynamicFriction(tt.a, tt.b); math.Abs(got-tt.wantDynamic) > epsilon {
				t.Errorf("ComputeDynamicFriction() = %v, want %v", got, tt.wantDynamic)
			}
		})
	}
}

// =============================================================================
// Descriptor Tests
// =============================================================================

func TestDescriptor_Reset(t *testing.T) {
	body0 := createBody(0, mgl64.Vec3{}, actor.BodyTypeDynamic)
	body1 := createBody(1, mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

	tests := []struct {
		name         string
		capacity     int
		wantCapacity int
	}{
		{"regular", 3, 3},
		{"negative", -2, 0},
		{"over the limit", MaxRows + 10, MaxRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := &Descriptor{RowCount: 5, Overflow: 2}
			desc.Reset(body0, body1, 0.5, tt.capacity, 0.3)

			if desc.Capacity != tt.wantCapacity {
				t.Errorf("Capacity = %d, want %d", desc.Capacity, tt.wantCapacity)
			}
			if desc.RowCount != 0 || desc.Overflow != 0 {
				t.Errorf("RowCount = %d, Overflow = %d, want 0", desc.RowCount, desc.Overflow)
			}
			if desc.InvTimestep != 2 || desc.Stiffness != 0.3 {
				t.Errorf("InvTimestep = %v, Stiffness = %v", desc.InvTimestep, desc.Stiffness)
			}
		})
	}
}

func TestDescriptor_AddLinearRow(t *testing.T) {
	body0 := createBody(0, mgl64.Vec3{0, 0, 0}, actor.BodyTypeDynamic)
	body1 := createBody(1, mgl64.Vec3{2, 0, 0}, actor.BodyTypeDynamic)
	desc := createDescriptor(body0, body1, 1)

	pivot0 := mgl64.Vec3{1, 0.1, 0}
	pivot1 := mgl64.Vec3{1, 0, 0}
	row := desc.AddLinearRow(pivot0, pivot1, mgl64.Vec3{0, 1, 0})
	if row != 0 {
		t.Fatalf("AddLinearRow() = %d, want 0", row)
	}

	r := desc.Rows[row]
	want := JacobianPair{
		Body0: Jacobian{Linear: mgl64.Vec3{0, 1, 0}, Angular: mgl64.Vec3{0, 0, 1}},
		Body1: Jacobian{Linear: mgl64.Vec3{0, -1, 0}, Angular: mgl64.Vec3{0, 0, 1}},
	}
	if r.Jacobian != want {
		t.Errorf("Jacobian = %+v, want %+v", r.Jacobian, want)
	}
	if math.Abs(r.Penetration+0.1) > epsilon {
		t.Errorf("Penetration = %v, want -0.1", r.Penetration)
	}
	if r.Low != MinBound || r.High != MaxBound || r.NormalIndex != IndependentRow || r.Stiffness != 0.2 {
		t.Errorf("row defaults = %+v", r)
	}
}

func TestDescriptor_Overflow(t *testing.T) {
	body0 := createBody(0, mgl64.Vec3{}, actor.BodyTypeDynamic)
	body1 := createBody(1, mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	desc := createDescriptor(body0, body1, 2)

	for range 4 {
		desc.AddAngularRow(mgl64.Vec3{1, 0, 0}, 0)
	}

	if desc.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", desc.RowCount)
	}
	if desc.Overflow != 2 {
		t.Errorf("Overflow = %d, want 2", desc.Overflow)
	}
	// setters on a rejected row are ignored
	desc.SetBounds(-1, 1, 2)
	desc.SetBounds(2, 1, 2)
	desc.SetSpeed(3, 5)
	for i := range desc.RowCount {
		if desc.Rows[i].Low != MinBound || desc.Rows[i].Speed != 0 {
			t.Errorf("row %d modified by an out of range setter: %+v", i, desc.Rows[i])
		}
	}
}

func TestDescriptor_Setters(t *testing.T) {
	body0 := createBody(0, mgl64.Vec3{}, actor.BodyTypeDynamic)
	body1 := createBody(1, mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	desc := createDescriptor(body0, body1, 3)

	normal := desc.AddAngularRow(mgl64.Vec3{0, 1, 0}, 0.25)
	friction := desc.AddAngularRow(mgl64.Vec3{1, 0, 0}, 0)

	desc.SetBounds(normal, 0, MaxBound)
	desc.SetLowerBound(friction, -0.5)
	desc.SetUpperBound(friction, 0.5)
	desc.SetNormalIndex(friction, normal)
	desc.SetNormalIndex(normal, friction) // must reference an earlier row
	desc.SetSpeed(friction, 2)
	desc.SetMotorAcceleration(friction, 3)
	desc.SetPenetration(normal, 0.1)
	desc.SetStiffness(normal, 1)
	desc.SetRestitution(normal, 0.5)
	desc.SetRegularizer(normal, 1e-3)

	n, f := desc.Rows[normal], desc.Rows[friction]
	if n.Low != 0 || n.High != MaxBound || n.NormalIndex != IndependentRow {
		t.Errorf("normal row = %+v", n)
	}
	if n.Penetration != 0.1 || n.Stiffness != 1 || n.Restitution != 0.5 || n.Regularizer != 1e-3 {
		t.Errorf("normal row = %+v", n)
	}
	if f.Low != -0.5 || f.High != 0.5 || f.NormalIndex != normal || f.Speed != 2 || f.JointAccel != 3 {
		t.Errorf("friction row = %+v", f)
	}
}

func TestDescriptor_Sanitize(t *testing.T) {
	tests := []struct {
		name         string
		write        func(d *Descriptor)
		wantRows     int
		wantDropped  int
		wantUnlinked int
	}{
		{"untouched", func(d *Descriptor) {}, 3, 0, 0},
		{"link past the rows", func(d *Descriptor) { d.Rows[1].NormalIndex = 40 }, 3, 0, 1},
		{"link to itself", func(d *Descriptor) { d.Rows[2].NormalIndex = 2 }, 3, 0, 1},
		{"negative link", func(d *Descriptor) { d.Rows[0].NormalIndex = -7 }, 3, 0, 1},
		{"row count past capacity", func(d *Descriptor) { d.RowCount = MaxRows }, 3, MaxRows - 3, 0},
		{"negative row count", func(d *Descriptor) { d.RowCount = -2 }, 0, 0, 0},
		{"capacity rewritten", func(d *Descriptor) { d.Capacity = 100; d.RowCount = 50 }, 3, 47, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body0 := createBody(0, mgl64.Vec3{}, actor.BodyTypeDynamic)
			body1 := createBody(1, mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
			desc := createDescriptor(body0, body1, 3)
			normal := desc.AddLinearRow(mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
			friction := desc.AddLinearRow(mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
			desc.AddLinearRow(mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
			desc.SetNormalIndex(friction, normal)

			tt.write(desc)
			dropped, unlinked := desc.Sanitize(3)

			if desc.RowCount != tt.wantRows || dropped != tt.wantDropped || unlinked != tt.wantUnlinked {
				t.Errorf("Sanitize() = (%d, %d) with %d rows, want (%d, %d) with %d rows",
					dropped, unlinked, desc.RowCount, tt.wantDropped, tt.wantUnlinked, tt.wantRows)
			}
			for r := range desc.RowCount {
				if n := desc.Rows[r].NormalIndex; n < IndependentRow || n >= r {
					t.Errorf("row %d keeps normal index %d", r, n)
				}
			}
		})
	}
}

func TestDescriptor_RelativeVelocity(t *testing.T) {
	body0 := createBody(0, mgl64.Vec3{}, actor.BodyTypeDynamic)
	body1 := createBody(1, mgl64.Vec3{2, 0, 0}, actor.BodyTypeDynamic)
	body0.Velocity = mgl64.Vec3{0, 1, 0}
	body1.AngularVelocity = mgl64.Vec3{0, 0, 1}
	desc := createDescriptor(body0, body1, 1)

	pivot := mgl64.Vec3{1, 0, 0}
	row := desc.AddLinearRow(pivot, pivot, mgl64.Vec3{0, 1, 0})

	// point velocity of body 1 at the pivot: ω × r = (0,0,1) × (-1,0,0) = (0,-1,0)
	if got := desc.RelativeVelocity(row); math.Abs(got-2) > epsilon {
		t.Errorf("RelativeVelocity() = %v, want 2", got)
	}
	if got := desc.RelativeVelocity(4); got != 0 {
		t.Errorf("RelativeVelocity(invalid) = %v, want 0", got)
	}
}

// =============================================================================
// Feedback Tests
// =============================================================================

func TestForceFeedback(t *testing.T) {
	var feedback ForceFeedback
	if feedback.InitialGuess() != 0 {
		t.Fatal("a new row starts from zero")
	}

	feedback.Push(3.5, 0.25)
	if feedback.InitialGuess() != 3.5 || feedback.Impact != 0.25 {
		t.Errorf("feedback = %+v, want force 3.5 impact 0.25", feedback)
	}
}

func TestBilateral_JointReaction(t *testing.T) {
	tests := []struct {
		name       string
		breakForce float64
		forces     []float64
		wantBroken bool
	}{
		{"unbreakable", 0, []float64{1e9}, false},
		{"under the limit", 10, []float64{5, -9.5}, false},
		{"over the limit", 10, []float64{5, -10.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Bilateral{BreakForce: tt.breakForce}
			b.JointReaction(tt.forces, 1.0/60.0)
			if b.Broken() != tt.wantBroken {
				t.Errorf("Broken() = %v, want %v", b.Broken(), tt.wantBroken)
			}
		})
	}
}
