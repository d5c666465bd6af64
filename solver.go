package ligament

import (
	"math"

	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// bodyProxy is the solver's view of a body for one step
type bodyProxy struct {
	body       *actor.RigidBody
	mass       float64
	invMass    float64
	invInertia mgl64.Mat3
	// external force and torque, gravity included
	external constraint.Jacobian

	static  bool
	resting bool
	// weight is the number of active joints touching the body, at least 1
	weight   float64
	island   int
	skeleton int
}

type jointInfo struct {
	id    constraint.JointID
	joint constraint.Joint
	// dense indices into solver.bodies
	body0 int
	body1 int
	// desc indexes solver.descriptors, in registration order
	desc int

	bilateral bool
	resting   bool
	loop      bool
	// tree is the skeleton this joint is an edge of, -1 otherwise
	tree int

	preconditioner0 float64
	preconditioner1 float64
}

type leftHandSide struct {
	Jt    constraint.JacobianPair
	JMinv constraint.JacobianPair
}

type rightHandSide struct {
	force     float64
	maxImpact float64

	diagDamp   float64
	invJinvMJt float64

	coordAccel float64
	deltaAccel float64
	jointAccel float64
	target     float64

	low         float64
	high        float64
	normalIndex int
}

// StepStats describes the last step
type StepStats struct {
	Bodies              int
	ActiveBodies        int
	RestingBodies       int
	UnconstrainedBodies int
	Islands             int

	Joints         int
	ActiveJoints   int
	Rows           int
	Batches        int
	UniformBatches int

	MaxWeight int
	Passes    int
	Skeletons int
}

type solver struct {
	cfg       *Config
	contracts *contracts

	gravity     mgl64.Vec3
	timestep    float64
	invTimestep float64
	h           float64
	invH        float64

	// live bodies in handle order, and their island builder input
	live        []*actor.RigidBody
	islandInput []islandBody
	inputOf     []int
	partition   islandPartition

	bodies []bodyProxy
	// dense maps a body handle to its index in bodies, -1 when not live
	dense            []int
	constrainedCount int

	inputs      []jointInfo
	edges       [][2]int
	descriptors []constraint.Descriptor
	rowCounts   []int

	plan       batchPlan
	joints     []jointInfo
	jointIndex []int

	lhs       []leftHandSide
	rhs       []rightHandSide
	soa       []soaRow
	rowForces []float64

	// two partial internal forces per sorted joint, reduced per body through bodySlots
	partials       []constraint.Jacobian
	internalForces []constraint.Jacobian
	bodySlotStart  []int
	bodySlots      []int

	maxWeight int
	passes    int

	skeletons   []skeletonState
	islandSleep []bool

	stats StepStats
}

func (s *solver) begin(dt float64, gravity mgl64.Vec3) {
	s.gravity = gravity
	s.timestep = dt
	s.invTimestep = 1.0 / dt
	s.h = dt / float64(s.cfg.SubSteps)
	s.invH = 1.0 / s.h
}

func (s *solver) workers() int {
	return s.cfg.Workers
}

// calculateForces runs the sub-steps of the step
func (s *solver) calculateForces(w *World) {
	s.initSkeletons(w)

	for range s.cfg.SubSteps {
		s.calculateJointsAcceleration()
		s.calculateJointsForce()
		s.updateSkeletons()
		s.integrateBodiesVelocity()
	}

	s.updateForceFeedback()
}

func (s *solver) activeJoints() int {
	return s.partition.activeJoints
}

// calculateJointsAcceleration refreshes the target acceleration of every
// active row from the current body velocities
func (s *solver) calculateJointsAcceleration() {
	parallelFor(s.workers(), s.activeJoints(), func(start, end int) {
		for k := start; k < end; k++ {
			info := &s.joints[k]
			b0 := s.bodies[info.body0].body
			b1 := s.bodies[info.body1].body
			v0 := constraint.Velocity(b0.Velocity, b0.AngularVelocity)
			v1 := constraint.Velocity(b1.Velocity, b1.AngularVelocity)

			bt := &s.plan.batches[s.plan.batchOf[k]]
			lane := s.plan.lane[k]
			first := s.plan.rowStart[k]
			for r := range s.plan.rowCount[k] {
				lhs := &s.lhs[first+r]
				rhs := &s.rhs[first+r]

				vRel := lhs.Jt.Body0.Dot(v0) + lhs.Jt.Body1.Dot(v1)
				rhs.coordAccel = rhs.deltaAccel + rhs.jointAccel + (rhs.target-vRel)*s.invH
				s.soa[bt.soaRowStart+r].coordAccel[lane] = rhs.coordAccel
			}
		}
	})
}

// calculateJointsForce runs the outer passes: every batch is solved against
// the internal forces of the previous pass, then the forces are reduced per body
func (s *solver) calculateJointsForce() {
	batches := len(s.plan.batches)
	for range s.passes {
		parallelFor(s.workers(), batches, func(start, end int) {
			for b := start; b < end; b++ {
				s.solveBatch(b)
			}
		})
		parallelFor(s.workers(), s.constrainedCount, s.reduceBodies)
	}
}

func (s *solver) solveBatch(b int) {
	bt := &s.plan.batches[b]
	rows := s.soa[bt.soaRowStart : bt.soaRowStart+bt.rowCount]

	var force0, force1 soaJacobian
	var weight0, weight1 lanes
	var converged [laneWidth]bool
	for l, k := range bt.lanes {
		if k < 0 {
			converged[l] = true
			continue
		}
		info := &s.joints[k]
		if p := &s.bodies[info.body0]; !p.static {
			force0.set(l, s.internalForces[info.body0])
			weight0[l] = p.weight * info.preconditioner0
		}
		if p := &s.bodies[info.body1]; !p.static {
			force1.set(l, s.internalForces[info.body1])
			weight1[l] = p.weight * info.preconditioner1
		}
	}

	tolerance2 := s.cfg.InnerTolerance * s.cfg.InnerTolerance
	residual := sweep(rows, &force0, &force1, &weight0, &weight1, &converged)
	for range s.cfg.InnerIterations {
		done := true
		for l := range laneWidth {
			if converged[l] {
				continue
			}
			if residual[l] <= tolerance2 {
				converged[l] = true
			} else {
				done = false
			}
		}
		if done {
			break
		}
		residual = sweep(rows, &force0, &force1, &weight0, &weight1, &converged)
	}

	for l, k := range bt.lanes {
		if k < 0 {
			continue
		}
		first := s.plan.rowStart[k]
		var partial0, partial1 constraint.Jacobian
		for r := range s.plan.rowCount[k] {
			f := rows[r].force[l]
			rhs := &s.rhs[first+r]
			rhs.force = f
			rhs.maxImpact = rows[r].impact[l]

			jt := &s.lhs[first+r].Jt
			partial0 = partial0.MulAdd(jt.Body0, f)
			partial1 = partial1.MulAdd(jt.Body1, f)
		}
		s.partials[2*k] = partial0
		s.partials[2*k+1] = partial1
	}
}

// sweep is one Gauss-Seidel pass over the rows of a batch, for every lane
// still iterating. It returns the largest squared residual of the unclamped
// rows of each lane.
func sweep(rows []soaRow, force0, force1 *soaJacobian, weight0, weight1 *lanes, converged *[laneWidth]bool) lanes {
	var residual lanes
	var normalForce [constraint.MaxRows + 1]lanes
	for l := range laneWidth {
		normalForce[0][l] = 1
	}

	for r := range rows {
		row := &rows[r]
		for l := range laneWidth {
			if converged[l] {
				continue
			}

			a := row.coordAccel[l] - row.force[l]*row.diagDamp[l] -
				row.JMinv0.dot(l, force0) - row.JMinv1.dot(l, force1)
			f := row.force[l] + row.invJinvMJt[l]*a

			normal := normalForce[row.normalIndex[l]+1][l]
			low := row.low[l] * normal
			high := row.high[l] * normal
			switch {
			case f < low:
				f = low
			case f > high:
				f = high
			default:
				residual[l] = max(residual[l], a*a)
			}

			delta := f - row.force[l]
			force0.mulAdd(l, &row.Jt0, delta*weight0[l])
			force1.mulAdd(l, &row.Jt1, delta*weight1[l])
			row.force[l] = f
			row.impact[l] = max(row.impact[l], math.Abs(delta))
			normalForce[r+1][l] = f
		}
	}

	return residual
}

// reduceBodies gathers the partial forces of every joint touching the bodies [start, end)
func (s *solver) reduceBodies(start, end int) {
	for i := start; i < end; i++ {
		s.reduceBody(i)
	}
}

func (s *solver) reduceBody(i int) {
	var total constraint.Jacobian
	for _, slot := range s.bodySlots[s.bodySlotStart[i]:s.bodySlotStart[i+1]] {
		total = total.Add(s.partials[slot])
	}
	s.internalForces[i] = total
}

// updateForceFeedback stores the solved forces into the joints for the next step
func (s *solver) updateForceFeedback() {
	parallelFor(s.workers(), s.activeJoints(), func(start, end int) {
		for k := start; k < end; k++ {
			info := &s.joints[k]
			first := s.plan.rowStart[k]
			count := s.plan.rowCount[k]
			forces := s.rowForces[first : first+count]

			feedback := info.joint.Feedback()
			for r := range count {
				rhs := &s.rhs[first+r]
				forces[r] = rhs.force
				if r < len(feedback) {
					feedback[r].Push(rhs.force, rhs.maxImpact)
				}
			}

			if listener, ok := info.joint.(constraint.ReactionListener); ok {
				listener.JointReaction(forces, s.timestep)
			}
		}
	})
}
