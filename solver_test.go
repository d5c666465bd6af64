package ligament

import (
	"math"
	"testing"

	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
	"github.com/akmonengine/ligament/skeleton"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/gomega"
)

const (
	testDt   = 1.0 / 60.0
	gravityY = -9.81
)

// createChain hangs n spheres from a static anchor at origin, each offset from
// the previous one, joined by ball joints at the previous body's center
func createChain(t testing.TB, w *World, origin mgl64.Vec3, n int, offset mgl64.Vec3) ([]*actor.RigidBody, []*constraint.Ball) {
	t.Helper()
	parent := createStatic(t, w, origin)

	links := make([]*actor.RigidBody, 0, n)
	balls := make([]*constraint.Ball, 0, n)
	for i := range n {
		link := createSphere(t, w, origin.Add(offset.Mul(float64(i+1))), 1)
		ball, _ := addBall(t, w, link, parent, parent.Transform.Position)
		links = append(links, link)
		balls = append(balls, ball)
		parent = link
	}

	return links, balls
}

func createHingedBoxes(t testing.TB, w *World) (*actor.RigidBody, *actor.RigidBody, *constraint.Hinge) {
	t.Helper()
	shape := &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}
	left := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{-0.5, 0, 0}), shape, actor.BodyTypeDynamic, 1)
	right := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0.5, 0, 0}), shape, actor.BodyTypeDynamic, 1)
	for _, body := range []*actor.RigidBody{left, right} {
		if _, err := w.AddBody(body); err != nil {
			t.Fatal(err)
		}
	}

	hinge := constraint.NewHinge(left, right, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
	if _, err := w.AddJoint(hinge); err != nil {
		t.Fatal(err)
	}

	return left, right, hinge
}

func positions(bodies []*actor.RigidBody) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(bodies))
	for i, body := range bodies {
		out[i] = body.Transform.Position
	}
	return out
}

func velocities(bodies []*actor.RigidBody) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(bodies))
	for i, body := range bodies {
		out[i] = body.Velocity
	}
	return out
}

func pivotSeparation(ball *constraint.Ball, body0, body1 *actor.RigidBody) float64 {
	pivot0 := body0.Transform.PointToWorld(ball.LocalPivot0)
	pivot1 := body1.Transform.PointToWorld(ball.LocalPivot1)
	return pivot0.Sub(pivot1).Len()
}

// =============================================================================
// Equilibrium Tests
// =============================================================================

func TestSolver_HingeAtRest(t *testing.T) {
	g := NewWithT(t)
	w := createWorld(t, nil)
	left, right, hinge := createHingedBoxes(t, w)

	step(t, w, testDt, 20)

	g.Expect(left.Velocity).To(Equal(mgl64.Vec3{}))
	g.Expect(right.AngularVelocity).To(Equal(mgl64.Vec3{}))
	g.Expect(left.Transform.Position).To(Equal(mgl64.Vec3{-0.5, 0, 0}))
	g.Expect(right.Transform.Position).To(Equal(mgl64.Vec3{0.5, 0, 0}))
	for r, feedback := range hinge.Feedback()[:hinge.RowCount()] {
		g.Expect(feedback.Force).To(BeZero(), "row %d", r)
	}

	g.Expect(left.IsSleeping()).To(BeTrue())
	g.Expect(right.IsSleeping()).To(BeTrue())
	stats := w.Stats()
	g.Expect(stats.ActiveBodies).To(Equal(0))
	g.Expect(stats.RestingBodies).To(Equal(2))
	g.Expect(stats.Islands).To(Equal(1))
	g.Expect(stats.Joints).To(Equal(1))
	g.Expect(stats.ActiveJoints).To(Equal(0))
}

func TestSolver_RestingIslandIsIdempotent(t *testing.T) {
	w := createWorld(t, nil)
	w.Gravity = mgl64.Vec3{0, gravityY, 0}
	links, balls := createChain(t, w, mgl64.Vec3{}, 2, mgl64.Vec3{0, -1, 0})

	// hanging straight down, the chain settles and falls asleep
	for i := 0; !links[0].IsSleeping() || !links[1].IsSleeping(); i++ {
		if i == 240 {
			t.Fatalf("hanging chain still awake, velocities %v", velocities(links))
		}
		step(t, w, testDt, 1)
	}
	support := balls[0].Feedback()[1].Force
	if math.Abs(support-2*math.Abs(gravityY)) > 0.05 {
		t.Errorf("upper joint force = %v, want the weight of both links %v", support, 2*math.Abs(gravityY))
	}

	before := positions(links)
	for i := range 30 {
		step(t, w, testDt, 1)
		if diff := cmp.Diff(before, positions(links)); diff != "" {
			t.Fatalf("step %d: resting chain moved (-before +after):\n%s", i, diff)
		}
	}
	if stats := w.Stats(); stats.RestingBodies != 2 || stats.ActiveJoints != 0 {
		t.Errorf("Stats() = %+v, want 2 resting bodies and no active joint", stats)
	}
	if support != balls[0].Feedback()[1].Force {
		t.Error("resting joints keep their last force")
	}
}

// =============================================================================
// Conservation Tests
// =============================================================================

// createSpinningSkeleton builds a two-link skeleton on a dynamic anchor,
// turning rigidly about z while it drifts
func createSpinningSkeleton(t *testing.T, w *World) []*actor.RigidBody {
	t.Helper()
	anchor := createSphere(t, w, mgl64.Vec3{}, 2)
	link0 := createSphere(t, w, mgl64.Vec3{1, 0, 0}, 1)
	link1 := createSphere(t, w, mgl64.Vec3{2, 0, 0}, 1)
	_, j0 := addBall(t, w, link0, anchor, mgl64.Vec3{0.5, 0, 0})
	_, j1 := addBall(t, w, link1, link0, mgl64.Vec3{1.5, 0, 0})

	skel := skeleton.New(anchor.ID)
	if _, err := skel.AddLink(link0.ID, j0, -1); err != nil {
		t.Fatal(err)
	}
	if _, err := skel.AddLink(link1.ID, j1, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.AddSkeleton(skel); err != nil {
		t.Fatal(err)
	}

	omega := mgl64.Vec3{0, 0, 0.5}
	drift := mgl64.Vec3{0.2, 0, 0.1}
	bodies := []*actor.RigidBody{anchor, link0, link1}
	for _, body := range bodies {
		body.AngularVelocity = omega
		body.Velocity = drift.Add(omega.Cross(body.Transform.Position))
	}
	return bodies
}

func TestSolver_MomentumConservation(t *testing.T) {
	tests := []struct {
		name       string
		create     func(t *testing.T, w *World) []*actor.RigidBody
		dt         float64
		wantWeight int
	}{
		{"ball pair", func(t *testing.T, w *World) []*actor.RigidBody {
			light := createSphere(t, w, mgl64.Vec3{-0.5, 0, 0}, 1)
			heavy := createSphere(t, w, mgl64.Vec3{0.5, 0, 0}, 40)
			addBall(t, w, light, heavy, mgl64.Vec3{})

			light.Velocity = mgl64.Vec3{1, 2, 0}
			light.AngularVelocity = mgl64.Vec3{0, 0, 3}
			heavy.Velocity = mgl64.Vec3{-0.5, 0, 1}
			return []*actor.RigidBody{light, heavy}
		}, testDt, 1},
		{"skeleton on a dynamic anchor", createSpinningSkeleton, 1.0 / 120.0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := createWorld(t, nil)
			bodies := tt.create(t, w)

			momentum := func() (linear, angular mgl64.Vec3) {
				for _, body := range bodies {
					linear = linear.Add(body.LinearMomentum())
					angular = angular.Add(body.AngularMomentum())
				}
				return linear, angular
			}

			linear, angular := momentum()
			for i := range 120 {
				step(t, w, tt.dt, 1)
				nextLinear, nextAngular := momentum()
				if drift := nextLinear.Sub(linear).Len(); drift > 1e-9 {
					t.Fatalf("step %d: linear momentum changed by %v", i, drift)
				}
				if drift := nextAngular.Sub(angular).Len(); drift > 1e-4*angular.Len() {
					t.Fatalf("step %d: angular momentum changed by %v of %v", i, drift, angular.Len())
				}
				linear, angular = nextLinear, nextAngular
			}
			if w.Stats().MaxWeight != tt.wantWeight {
				t.Errorf("MaxWeight = %d, want %d", w.Stats().MaxWeight, tt.wantWeight)
			}
		})
	}
}

func TestSolver_BallJointHolds(t *testing.T) {
	w := createWorld(t, nil)
	body0 := createSphere(t, w, mgl64.Vec3{-0.5, 0, 0}, 1)
	body1 := createSphere(t, w, mgl64.Vec3{0.5, 0, 0}, 1)
	ball, _ := addBall(t, w, body0, body1, mgl64.Vec3{})

	// the pair spins around the pivot at 2 rad/s
	body0.Velocity = mgl64.Vec3{0, -1, 0}
	body1.Velocity = mgl64.Vec3{0, 1, 0}

	for i := range 180 {
		step(t, w, testDt, 1)
		if separation := pivotSeparation(ball, body0, body1); separation > 0.02 {
			t.Fatalf("step %d: pivots %v apart", i, separation)
		}
	}
	if body0.IsSleeping() || body1.IsSleeping() {
		t.Error("a spinning pair should stay awake")
	}
}

// =============================================================================
// Determinism Tests
// =============================================================================

// createPaddingWorld builds a swinging two-link chain; with extra it also
// adds disjoint jointed pairs that fill the batch lanes around the chain
func createPaddingWorld(t *testing.T, extra bool) (*World, []*actor.RigidBody) {
	t.Helper()
	w := createWorld(t, nil)
	w.Gravity = mgl64.Vec3{0, gravityY, 0}
	links, _ := createChain(t, w, mgl64.Vec3{}, 2, mgl64.Vec3{1, 0, 0})
	links[0].Velocity = mgl64.Vec3{0, 0, 0.5}

	if !extra {
		return w, links
	}
	for i := range 8 {
		origin := mgl64.Vec3{100 + 10*float64(i), 0, 0}
		body0 := createSphere(t, w, origin, 1)
		body1 := createSphere(t, w, origin.Add(mgl64.Vec3{1, 0, 0}), 2)
		pivot := origin.Add(mgl64.Vec3{0.5, 0, 0})
		var joint constraint.Joint = constraint.NewBall(body0, body1, pivot)
		if i%3 == 0 {
			joint = constraint.NewHinge(body0, body1, pivot, mgl64.Vec3{0, 0, 1})
		}
		if _, err := w.AddJoint(joint); err != nil {
			t.Fatal(err)
		}
	}

	return w, links
}

func TestSolver_PaddingNeutrality(t *testing.T) {
	alone, aloneLinks := createPaddingWorld(t, false)
	padded, paddedLinks := createPaddingWorld(t, true)

	for i := range 40 {
		step(t, alone, testDt, 1)
		step(t, padded, testDt, 1)
		if diff := cmp.Diff(positions(aloneLinks), positions(paddedLinks)); diff != "" {
			t.Fatalf("step %d: chain depends on the other joints (-alone +padded):\n%s", i, diff)
		}
		if diff := cmp.Diff(velocities(aloneLinks), velocities(paddedLinks)); diff != "" {
			t.Fatalf("step %d: velocities differ (-alone +padded):\n%s", i, diff)
		}
	}

	if alone.Stats().Batches != 1 || padded.Stats().Batches != 2 {
		t.Errorf("batches = %d and %d, want 1 and 2", alone.Stats().Batches, padded.Stats().Batches)
	}
	if alone.Stats().Passes != padded.Stats().Passes {
		t.Errorf("passes = %d and %d, want equal", alone.Stats().Passes, padded.Stats().Passes)
	}
}

func TestSolver_WorkerDeterminism(t *testing.T) {
	run := func(workers int) ([]mgl64.Vec3, []mgl64.Vec3) {
		cfg := DefaultConfig()
		cfg.Workers = workers
		w := createWorld(t, cfg)
		w.Gravity = mgl64.Vec3{0, gravityY, 0}

		links, _ := createChain(t, w, mgl64.Vec3{}, 20, mgl64.Vec3{0.5, 0, 0})
		more, _ := createChain(t, w, mgl64.Vec3{0, 0, 5}, 7, mgl64.Vec3{0.5, 0, 0})
		links = append(links, more...)
		for i := range 5 {
			links = append(links, createSphere(t, w, mgl64.Vec3{float64(i), 10, -5}, 1))
		}

		step(t, w, testDt, 30)
		return positions(links), velocities(links)
	}

	positions1, velocities1 := run(1)
	for _, workers := range []int{2, 4, 7} {
		positionsN, velocitiesN := run(workers)
		if diff := cmp.Diff(positions1, positionsN); diff != "" {
			t.Errorf("%d workers: positions differ (-1 worker +n workers):\n%s", workers, diff)
		}
		if diff := cmp.Diff(velocities1, velocitiesN); diff != "" {
			t.Errorf("%d workers: velocities differ (-1 worker +n workers):\n%s", workers, diff)
		}
	}
}

// =============================================================================
// Contract Tests
// =============================================================================

func TestSolver_RowOverflow(t *testing.T) {
	if debugContracts {
		t.Skip("contract violations panic in debug builds")
	}

	w := createWorld(t, nil)
	body0 := createSphere(t, w, mgl64.Vec3{}, 1)
	body1 := createSphere(t, w, mgl64.Vec3{1, 0, 0}, 1)
	if _, err := w.AddJoint(newRowJoint(body0, body1, 1, 3)); err != nil {
		t.Fatal(err)
	}

	step(t, w, testDt, 3)

	if got := w.contracts.count(violationRowOverflow); got != 3 {
		t.Errorf("row overflow reported %d times, want 3", got)
	}
	if w.Stats().Rows != 1 {
		t.Errorf("Rows = %d, want the declared row only", w.Stats().Rows)
	}
}

// rawJoint writes its rows through the descriptor fields after adding them
type rawJoint struct {
	constraint.Bilateral
	write func(desc *constraint.Descriptor)
}

func (j *rawJoint) RowCount() int {
	return 2
}

func (j *rawJoint) JacobianDerivative(desc *constraint.Descriptor) {
	p0 := desc.Body0.Transform.Position
	p1 := desc.Body1.Transform.Position
	normal := desc.AddLinearRow(p0, p1, mgl64.Vec3{0, 1, 0})
	friction := desc.AddLinearRow(p0, p1, mgl64.Vec3{1, 0, 0})
	desc.SetBounds(normal, 0, constraint.MaxBound)
	desc.SetBounds(friction, -0.5, 0.5)
	desc.SetNormalIndex(friction, normal)
	j.write(desc)
}

func TestSolver_RawDescriptorWrites(t *testing.T) {
	if debugContracts {
		t.Skip("contract violations panic in debug builds")
	}

	tests := []struct {
		name         string
		write        func(desc *constraint.Descriptor)
		wantOverflow int64
		wantUnlinked int64
	}{
		{"normal index past the rows", func(desc *constraint.Descriptor) { desc.Rows[1].NormalIndex = 40 }, 0, 3},
		{"normal index on itself", func(desc *constraint.Descriptor) { desc.Rows[0].NormalIndex = 0 }, 0, 3},
		{"row count past capacity", func(desc *constraint.Descriptor) { desc.RowCount = constraint.MaxRows }, 3, 0},
		{"capacity rewritten", func(desc *constraint.Descriptor) {
			desc.Capacity = 2 * constraint.MaxRows
			desc.RowCount = 2 * constraint.MaxRows
		}, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Workers = 4
			w := createWorld(t, cfg)
			w.Gravity = mgl64.Vec3{0, gravityY, 0}
			body0 := createSphere(t, w, mgl64.Vec3{}, 1)
			body1 := createSphere(t, w, mgl64.Vec3{0, -0.5, 0}, 1)
			joint := &rawJoint{
				Bilateral: constraint.Bilateral{Body0: body0.ID, Body1: body1.ID},
				write:     tt.write,
			}
			if _, err := w.AddJoint(joint); err != nil {
				t.Fatal(err)
			}

			step(t, w, testDt, 3)

			if got := w.contracts.count(violationRowOverflow); got != tt.wantOverflow {
				t.Errorf("row overflow reported %d times, want %d", got, tt.wantOverflow)
			}
			if got := w.contracts.count(violationNormalIndex); got != tt.wantUnlinked {
				t.Errorf("normal index reported %d times, want %d", got, tt.wantUnlinked)
			}
			if w.Stats().Rows > 2 {
				t.Errorf("Rows = %d, want at most the 2 declared rows", w.Stats().Rows)
			}
			for _, body := range []*actor.RigidBody{body0, body1} {
				p := body.Transform.Position
				if math.IsNaN(p.X()) || math.IsNaN(p.Y()) || math.IsNaN(p.Z()) {
					t.Errorf("Position = %v", p)
				}
			}
		})
	}
}

func TestSolver_InvalidMass(t *testing.T) {
	if debugContracts {
		t.Skip("contract violations panic in debug builds")
	}

	w := createWorld(t, nil)
	w.Gravity = mgl64.Vec3{0, gravityY, 0}
	body := createStatic(t, w, mgl64.Vec3{0, 1, 0})
	// a static body turned dynamic keeps its infinite mass
	body.BodyType = actor.BodyTypeDynamic

	step(t, w, testDt, 2)

	if got := w.contracts.count(violationInvalidMass); got != 2 {
		t.Errorf("invalid mass reported %d times, want 2", got)
	}
	if body.Transform.Position != (mgl64.Vec3{0, 1, 0}) {
		t.Errorf("Position = %v, an invalid body is treated as static", body.Transform.Position)
	}
}

// =============================================================================
// Skeleton Tests
// =============================================================================

func TestSolver_SkeletonPendulum(t *testing.T) {
	g := NewWithT(t)
	w := createWorld(t, nil)
	w.Gravity = mgl64.Vec3{0, gravityY, 0}

	links, balls := createChain(t, w, mgl64.Vec3{}, 2, mgl64.Vec3{1, 0, 0})
	anchor := w.Body(0)
	skel := skeleton.New(anchor.ID)
	for i, link := range links {
		_, err := skel.AddLink(link.ID, w.jointIDs[balls[i]], i-1)
		g.Expect(err).NotTo(HaveOccurred())
	}
	g.Expect(w.AddSkeleton(skel)).To(Succeed())

	// a slack rope closes a loop without adding rows
	rope := constraint.NewDistance(links[1], anchor, links[1].Transform.Position, anchor.Transform.Position)
	rope.SetRange(0, 10)
	ropeID, err := w.AddJoint(rope)
	g.Expect(err).NotTo(HaveOccurred())

	dt := 1.0 / 240.0
	lowest := 0.0
	for i := range 240 {
		step(t, w, dt, 1)
		lowest = min(lowest, links[0].Transform.Position.Y())
		g.Expect(pivotSeparation(balls[0], links[0], anchor)).To(BeNumerically("<", 0.03), "step %d", i)
		g.Expect(pivotSeparation(balls[1], links[1], links[0])).To(BeNumerically("<", 0.03), "step %d", i)
	}

	g.Expect(w.Stats().Skeletons).To(Equal(1))
	g.Expect(skel.LoopJoints()).To(ConsistOf(ropeID))
	g.Expect(lowest).To(BeNumerically("<", -0.5))
	g.Expect(balls[0].Feedback()[1].Force).NotTo(BeZero())
}

// =============================================================================
// Joint Break Tests
// =============================================================================

func TestSolver_JointBreak(t *testing.T) {
	g := NewWithT(t)
	w := createWorld(t, nil)
	w.Gravity = mgl64.Vec3{0, -10, 0}
	anchor := createStatic(t, w, mgl64.Vec3{})
	body := createSphere(t, w, mgl64.Vec3{0, -1, 0}, 1)
	ball, id := addBall(t, w, body, anchor, mgl64.Vec3{})
	ball.BreakForce = 1

	capture := &eventCapture{}
	w.Events.Subscribe(ON_JOINT_BREAK, capture.capture)

	step(t, w, testDt, 1)

	g.Expect(ball.Broken()).To(BeTrue())
	g.Expect(w.JointCount()).To(Equal(0))
	g.Expect(w.Joint(id)).To(BeNil())
	g.Expect(capture.events).To(HaveLen(1))

	event, ok := capture.events[0].(JointBreakEvent)
	g.Expect(ok).To(BeTrue())
	g.Expect(event.Joint).To(Equal(id))
	g.Expect(event.Body0).To(Equal(body.ID))
	g.Expect(event.Body1).To(Equal(anchor.ID))
	g.Expect(event.BrokenJoint).To(BeIdenticalTo(ball))

	// the body falls freely afterwards
	velocity := body.Velocity.Y()
	step(t, w, testDt, 1)
	g.Expect(body.Velocity.Y()).To(BeNumerically("~", velocity-10*testDt, 1e-9))
	g.Expect(w.RemoveBody(body.ID)).To(Succeed())
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorld_UpdateChain(b *testing.B) {
	w := createWorld(b, nil)
	w.Gravity = mgl64.Vec3{0, gravityY, 0}
	createChain(b, w, mgl64.Vec3{}, 64, mgl64.Vec3{0.5, 0, 0})

	for b.Loop() {
		if err := w.Update(testDt); err != nil {
			b.Fatal(err)
		}
	}
}
