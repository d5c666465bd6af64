package ligament

import (
	"fmt"
	"math"
	"slices"

	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
	"github.com/akmonengine/ligament/skeleton"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-logr/logr"
)

type World struct {
	// Gravity acceleration (m/s², or N/kg)
	Gravity mgl64.Vec3
	// Narrowphase is invoked at the beginning of every Update, to refresh
	// the contacts of the step (add, update or remove contact joints)
	Narrowphase func(w *World) error

	Events Events

	config    Config
	log       logr.Logger
	contracts contracts
	registry  registry

	jointIDs   map[constraint.Joint]constraint.JointID
	skeletons  []*skeleton.Skeleton
	skeletonOf []int
	treeJoints map[constraint.JointID]int

	solver solver
	steps  uint64
}

// NewWorld creates an empty world. cfg is copied; nil means DefaultConfig().
func NewWorld(cfg *Config) (*World, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &World{
		Events:     NewEvents(),
		config:     *cfg,
		jointIDs:   make(map[constraint.Joint]constraint.JointID),
		treeJoints: make(map[constraint.JointID]int),
	}
	if w.config.Logger.GetSink() == nil {
		w.config.Logger = logr.Discard()
	}
	w.log = w.config.Logger.WithName("ligament")
	w.contracts.log = w.log
	w.solver.cfg = &w.config
	w.solver.contracts = &w.contracts

	return w, nil
}

func (w *World) Config() Config {
	return w.config
}

// Stats describes the last step
func (w *World) Stats() StepStats {
	return w.solver.stats
}

// AddBody registers a body and assigns its ID
func (w *World) AddBody(body *actor.RigidBody) (actor.BodyID, error) {
	if body.ID != actor.InvalidBody && w.registry.body(body.ID) == body {
		return body.ID, fmt.Errorf("%w: body %d", ErrBodyRegistered, body.ID)
	}
	if err := body.Validate(); err != nil {
		return actor.InvalidBody, err
	}

	id := w.registry.addBody(body)
	if int(id) >= len(w.skeletonOf) {
		w.skeletonOf = append(w.skeletonOf, -1)
	}
	w.skeletonOf[id] = -1

	return id, nil
}

// RemoveBody unregisters a body. It fails while a joint still uses the body.
func (w *World) RemoveBody(id actor.BodyID) error {
	if w.registry.body(id) == nil {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	if w.registry.references[id] > 0 {
		return fmt.Errorf("%w: body %d used by %d joints", ErrBodyReferenced, id, w.registry.references[id])
	}

	w.registry.removeBody(id)
	w.Events.forget(id)

	return nil
}

// Body returns the body registered under id, or nil
func (w *World) Body(id actor.BodyID) *actor.RigidBody {
	return w.registry.body(id)
}

// Bodies returns the live bodies in handle order
func (w *World) Bodies() []*actor.RigidBody {
	bodies := make([]*actor.RigidBody, 0, w.registry.bodyCount())
	for _, body := range w.registry.bodies {
		if body != nil {
			bodies = append(bodies, body)
		}
	}

	return bodies
}

func (w *World) BodyCount() int {
	return w.registry.bodyCount()
}

// AddJoint registers a joint or a contact between two registered bodies and wakes them
func (w *World) AddJoint(joint constraint.Joint) (constraint.JointID, error) {
	if id, ok := w.jointIDs[joint]; ok {
		return id, fmt.Errorf("%w: joint %d", ErrJointRegistered, id)
	}

	id0, id1 := joint.Bodies()
	body0 := w.registry.body(id0)
	body1 := w.registry.body(id1)
	switch {
	case body0 == nil:
		return constraint.InvalidJoint, fmt.Errorf("%w: %d", ErrUnknownBody, id0)
	case body1 == nil:
		return constraint.InvalidJoint, fmt.Errorf("%w: %d", ErrUnknownBody, id1)
	case id0 == id1:
		return constraint.InvalidJoint, fmt.Errorf("%w: %d", ErrSameBody, id0)
	case body0.IsStatic() && body1.IsStatic():
		return constraint.InvalidJoint, fmt.Errorf("%w: %d, %d", ErrStaticJoint, id0, id1)
	case joint.RowCount() > constraint.MaxRows:
		return constraint.InvalidJoint, fmt.Errorf("%w: %d > %d", ErrTooManyRows, joint.RowCount(), constraint.MaxRows)
	}

	id := w.registry.addJoint(joint)
	w.jointIDs[joint] = id
	body0.Wake()
	body1.Wake()

	return id, nil
}

// RemoveJoint unregisters a joint and wakes its bodies. Tree joints of a
// skeleton can only be removed after the skeleton.
func (w *World) RemoveJoint(id constraint.JointID) error {
	joint := w.registry.joint(id)
	if joint == nil {
		return fmt.Errorf("%w: %d", ErrUnknownJoint, id)
	}
	if _, ok := w.treeJoints[id]; ok {
		return &JointError{Joint: id, Wrapped: fmt.Errorf("%w: joint is a skeleton edge", ErrSkeletonTopology)}
	}

	w.removeJoint(id, joint)

	return nil
}

func (w *World) removeJoint(id constraint.JointID, joint constraint.Joint) {
	id0, id1 := joint.Bodies()
	w.registry.body(id0).Wake()
	w.registry.body(id1).Wake()

	w.registry.removeJoint(id)
	delete(w.jointIDs, joint)
}

// Joint returns the joint registered under id, or nil
func (w *World) Joint(id constraint.JointID) constraint.Joint {
	return w.registry.joint(id)
}

func (w *World) JointCount() int {
	return w.registry.jointCount()
}

// AddSkeleton declares a tree of registered bodies and joints, solved exactly
// every step. Each link joint must have the link body as body 0 and the
// parent body as body 1. A dynamic body belongs to at most one skeleton.
func (w *World) AddSkeleton(skel *skeleton.Skeleton) error {
	if slices.Contains(w.skeletons, skel) {
		return fmt.Errorf("%w: skeleton already added", ErrSkeletonTopology)
	}
	if err := skel.Validate(); err != nil {
		return err
	}

	anchor := w.registry.body(skel.Anchor)
	if anchor == nil {
		return fmt.Errorf("%w: anchor %d", ErrUnknownBody, skel.Anchor)
	}
	if !anchor.IsStatic() && w.skeletonOf[skel.Anchor] >= 0 {
		return fmt.Errorf("%w: anchor %d already in a skeleton", ErrSkeletonTopology, skel.Anchor)
	}

	for i, link := range skel.Links {
		body := w.registry.body(link.Body)
		switch {
		case body == nil:
			return fmt.Errorf("%w: %d", ErrUnknownBody, link.Body)
		case body.IsStatic():
			return fmt.Errorf("%w: link %d is static", ErrSkeletonTopology, link.Body)
		case w.skeletonOf[link.Body] >= 0:
			return fmt.Errorf("%w: body %d already in a skeleton", ErrSkeletonTopology, link.Body)
		}

		joint := w.registry.joint(link.Joint)
		if joint == nil {
			return &JointError{Joint: link.Joint, Wrapped: ErrUnknownJoint}
		}
		if !joint.IsBilateral() {
			return &JointError{Joint: link.Joint, Wrapped: fmt.Errorf("%w: contacts cannot be tree edges", ErrSkeletonTopology)}
		}
		body0, body1 := joint.Bodies()
		if body0 != link.Body || body1 != skel.ParentBody(i) {
			return &JointError{Joint: link.Joint, Wrapped: fmt.Errorf("%w: joint connects %d and %d, link expects %d and %d",
				ErrSkeletonTopology, body0, body1, link.Body, skel.ParentBody(i))}
		}
	}

	w.skeletons = append(w.skeletons, skel)
	w.indexSkeletons()

	return nil
}

// RemoveSkeleton hands the joints of a skeleton back to the iterative solver
func (w *World) RemoveSkeleton(skel *skeleton.Skeleton) error {
	i := slices.Index(w.skeletons, skel)
	if i < 0 {
		return fmt.Errorf("%w: unknown skeleton", ErrSkeletonTopology)
	}

	w.skeletons = slices.Delete(w.skeletons, i, i+1)
	w.indexSkeletons()

	return nil
}

func (w *World) Skeletons() []*skeleton.Skeleton {
	return w.skeletons
}

func (w *World) indexSkeletons() {
	for i := range w.skeletonOf {
		w.skeletonOf[i] = -1
	}
	clear(w.treeJoints)

	for i, skel := range w.skeletons {
		if !w.registry.body(skel.Anchor).IsStatic() {
			w.skeletonOf[skel.Anchor] = i
		}
		for _, link := range skel.Links {
			w.skeletonOf[link.Body] = i
			w.treeJoints[link.Joint] = i
		}
	}
}

// Update advances the world by dt seconds
func (w *World) Update(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTimestep, dt)
	}

	if w.Narrowphase != nil {
		if err := w.Narrowphase(w); err != nil {
			return err
		}
	}

	s := &w.solver
	s.begin(dt, w.Gravity)

	// Phase 1: external forces
	s.applyForceCallbacks(w)

	// Phase 2: islands, bodies in solver order
	s.buildIslands(w)
	s.initBodyArray()
	s.integrateUnconstrainedBodies()

	// Phase 3: rows, batches and assembly
	s.getJacobianDerivatives()
	s.sortJoints(w)
	s.initWeights()
	s.initJacobianMatrix()

	// Phase 4: forces and velocities, by sub-steps
	s.calculateForces(w)

	// Phase 5: poses and sleep
	s.integrateBodies()
	s.determineSleepStates()

	w.finishStep()

	return nil
}

func (w *World) finishStep() {
	s := &w.solver
	for _, body := range s.live {
		body.SaveExternalForces()
	}

	for id, joint := range w.registry.joints {
		if joint == nil {
			continue
		}
		breakable, ok := joint.(constraint.Breakable)
		if !ok || !breakable.Broken() {
			continue
		}

		jointID := constraint.JointID(id)
		if skel, isTree := w.treeJoints[jointID]; isTree {
			w.log.Info("skeleton edge broke, skeleton removed", "joint", jointID, "anchor", w.skeletons[skel].Anchor)
			_ = w.RemoveSkeleton(w.skeletons[skel])
		}
		w.removeJoint(jointID, joint)
		w.Events.emitJointBreak(jointID, joint)
	}

	s.collectStats()
	w.steps++
	w.log.V(1).Info("step",
		"step", w.steps,
		"islands", s.stats.Islands,
		"activeBodies", s.stats.ActiveBodies,
		"activeJoints", s.stats.ActiveJoints,
		"batches", s.stats.Batches,
		"passes", s.stats.Passes,
	)

	w.Events.processSleepEvents(s.live)
	w.Events.flush()
}

func (s *solver) collectStats() {
	skeletons := s.stats.Skeletons
	s.stats = StepStats{
		Bodies:              len(s.bodies),
		ActiveBodies:        s.partition.activeCount,
		RestingBodies:       s.partition.restingCount,
		UnconstrainedBodies: s.partition.unconstrainedCount,
		Islands:             s.partition.islands,
		Joints:              len(s.joints),
		ActiveJoints:        s.partition.activeJoints,
		Rows:                s.plan.totalRows,
		Batches:             len(s.plan.batches),
		MaxWeight:           s.maxWeight,
		Passes:              s.passes,
		Skeletons:           skeletons,
	}
	for _, bt := range s.plan.batches {
		if bt.uniform {
			s.stats.UniformBatches++
		}
	}
}
