package ligament

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
)

// applyForceCallbacks lets every body update its external force for the step
func (s *solver) applyForceCallbacks(w *World) {
	s.live = s.live[:0]
	for _, body := range w.registry.bodies {
		if body != nil {
			s.live = append(s.live, body)
		}
	}

	task(s.workers(), s.live, func(body *actor.RigidBody) {
		if body.ForceCallback != nil && !body.IsStatic() {
			body.ForceCallback(body, s.timestep)
		}
	})
}

// buildIslands partitions the live bodies and sets up the body proxies in solver order
func (s *solver) buildIslands(w *World) {
	handles := len(w.registry.bodies)
	s.inputOf = resize(s.inputOf, handles)
	s.islandInput = s.islandInput[:0]
	for i := range s.inputOf {
		s.inputOf[i] = -1
	}

	for k, body := range s.live {
		static := body.IsStatic()
		if !static && body.Validate() != nil {
			s.contracts.report(violationInvalidMass, "body", body.ID)
			static = true
		}
		s.inputOf[body.ID] = k
		s.islandInput = append(s.islandInput, islandBody{static: static, equilibrium: static || body.IsSleeping()})
	}

	s.inputs = s.inputs[:0]
	s.edges = s.edges[:0]
	for id, joint := range w.registry.joints {
		if joint == nil {
			continue
		}
		body0, body1 := joint.Bodies()
		s.edges = append(s.edges, [2]int{s.inputOf[body0], s.inputOf[body1]})
		s.inputs = append(s.inputs, jointInfo{
			id:        constraint.JointID(id),
			joint:     joint,
			bilateral: joint.IsBilateral(),
			tree:      -1,
		})
	}

	s.partition.build(s.islandInput, s.edges)

	s.bodies = resize(s.bodies, len(s.live))
	s.dense = resize(s.dense, handles)
	for i := range s.dense {
		s.dense[i] = -1
	}
	for k, input := range s.partition.order {
		body := s.live[input]
		static := s.islandInput[input].static
		proxy := bodyProxy{
			body:     body,
			static:   static,
			resting:  s.partition.resting[input],
			island:   s.partition.island[input],
			weight:   1,
			skeleton: w.skeletonOf[body.ID],
		}
		if !static {
			proxy.mass = body.Mass()
			proxy.invMass = body.InvMass()
			proxy.external = constraint.Jacobian{
				Linear:  body.Force().Add(s.gravity.Mul(proxy.mass)),
				Angular: body.Torque(),
			}
		}
		s.bodies[k] = proxy
		s.dense[body.ID] = k
	}
	s.constrainedCount = s.partition.activeCount + s.partition.restingCount

	for j := range s.inputs {
		info := &s.inputs[j]
		info.desc = j
		info.body0 = s.dense[s.live[s.edges[j][0]].ID]
		info.body1 = s.dense[s.live[s.edges[j][1]].ID]
		info.resting = s.partition.jointResting[j]
		if skel, ok := w.treeJoints[info.id]; ok {
			info.tree = skel
		}
	}
}

// initBodyArray refreshes the world inertia, damping and gyroscopic state of every dynamic body
func (s *solver) initBodyArray() {
	parallelFor(s.workers(), len(s.bodies), func(start, end int) {
		for i := start; i < end; i++ {
			p := &s.bodies[i]
			if p.static {
				continue
			}
			if !p.resting {
				p.body.ApplyDamping(s.timestep)
			}
			p.body.PrepareStep()
			p.invInertia = p.body.InvInertiaWorld()
		}
	})
}

// getJacobianDerivatives asks every joint for its rows
func (s *solver) getJacobianDerivatives() {
	s.descriptors = resize(s.descriptors, len(s.inputs))
	s.rowCounts = resize(s.rowCounts, len(s.inputs))

	parallelFor(s.workers(), len(s.inputs), func(start, end int) {
		for j := start; j < end; j++ {
			info := &s.inputs[j]
			desc := &s.descriptors[j]

			capacity := info.joint.RowCount()
			if capacity > constraint.MaxRows {
				s.contracts.report(violationRowOverflow, "joint", info.id, "rows", capacity)
			}
			stiffness := s.cfg.JointStiffness
			if !info.bilateral {
				stiffness = s.cfg.ContactStiffness
			}

			b0 := s.bodies[info.body0].body
			b1 := s.bodies[info.body1].body
			desc.Reset(b0, b1, s.timestep, capacity, stiffness)
			info.joint.JacobianDerivative(desc)
			dropped, unlinked := desc.Sanitize(capacity)
			if desc.Overflow+dropped > 0 {
				s.contracts.report(violationRowOverflow, "joint", info.id, "rows", desc.RowCount+desc.Overflow+dropped)
			}
			if unlinked > 0 {
				s.contracts.report(violationNormalIndex, "joint", info.id, "links", unlinked)
			}
			s.rowCounts[j] = desc.RowCount
		}
	})
}

// sortJoints orders the joints into batches and finds the closed loops of the skeletons
func (s *solver) sortJoints(w *World) {
	s.plan.organize(s.rowCounts, s.partition.jointResting)

	s.joints = resize(s.joints, len(s.inputs))
	s.jointIndex = resize(s.jointIndex, len(w.registry.joints))
	for k, j := range s.plan.order {
		s.joints[k] = s.inputs[j]
		s.jointIndex[s.inputs[j].id] = k
	}

	for _, skel := range w.skeletons {
		skel.ClearLoops()
	}
	for k := range s.joints {
		info := &s.joints[k]
		if info.tree >= 0 {
			continue
		}
		sk0 := s.bodies[info.body0].skeleton
		sk1 := s.bodies[info.body1].skeleton
		if sk0 >= 0 {
			w.skeletons[sk0].AddLoopJoint(info.id)
		}
		if sk1 >= 0 && sk1 != sk0 {
			w.skeletons[sk1].AddLoopJoint(info.id)
		}
		info.loop = sk0 >= 0 || sk1 >= 0
	}

	totalRows := s.plan.totalRows
	s.lhs = resize(s.lhs, totalRows)
	s.rhs = resize(s.rhs, totalRows)
	s.rowForces = resize(s.rowForces, totalRows)
	s.soa = resize(s.soa, s.plan.soaRows)
	s.partials = resize(s.partials, 2*len(s.joints))
	s.internalForces = resize(s.internalForces, len(s.bodies))
}

// initWeights counts the active joints of every body and derives the number of passes
func (s *solver) initWeights() {
	counts := resize(s.bodySlotStart, len(s.bodies)+1)
	clear(counts)

	s.maxWeight = 1
	for i := range s.bodies {
		s.bodies[i].weight = 1
	}
	for k := range s.activeJoints() {
		info := &s.joints[k]
		for _, b := range [2]int{info.body0, info.body1} {
			if !s.bodies[b].static {
				counts[b]++
			}
		}
	}
	for i := range s.bodies {
		if counts[i] > 0 {
			s.bodies[i].weight = float64(counts[i])
			s.maxWeight = max(s.maxWeight, counts[i])
		}
	}
	s.passes = s.cfg.SolverIterations + 2*s.maxWeight/7 + 2

	// joint slots of every body, resting joints included
	clear(counts)
	for k := range s.joints {
		info := &s.joints[k]
		for _, b := range [2]int{info.body0, info.body1} {
			if !s.bodies[b].static {
				counts[b+1]++
			}
		}
	}
	for i := range len(s.bodies) {
		counts[i+1] += counts[i]
	}
	s.bodySlotStart = counts

	s.bodySlots = resize(s.bodySlots, counts[len(s.bodies)])
	fill := make([]int, len(s.bodies))
	copy(fill, counts[:len(s.bodies)])
	for k := range s.joints {
		info := &s.joints[k]
		if !s.bodies[info.body0].static {
			s.bodySlots[fill[info.body0]] = 2 * k
			fill[info.body0]++
		}
		if !s.bodies[info.body1].static {
			s.bodySlots[fill[info.body1]] = 2*k + 1
			fill[info.body1]++
		}
	}
}

// preconditioner scales up the contribution of the much heavier body of a joint
func (s *solver) preconditioner(info *jointInfo) (float64, float64) {
	p0 := &s.bodies[info.body0]
	p1 := &s.bodies[info.body1]
	if p0.static || p1.static || (p0.skeleton >= 0 && p1.skeleton >= 0) {
		return 1, 1
	}

	ratio := s.cfg.PreconditionerRatio
	switch {
	case p0.mass > ratio*p1.mass:
		return p0.mass / (p1.mass * ratio), 1
	case p1.mass > ratio*p0.mass:
		return 1, p1.mass / (p0.mass * ratio)
	}

	return 1, 1
}

// initJacobianMatrix fills the rows of every joint, warm starts them and
// reduces the partial forces per body, then transposes the active rows
func (s *solver) initJacobianMatrix() {
	parallelFor(s.workers(), len(s.joints), func(start, end int) {
		for k := start; k < end; k++ {
			s.buildJacobianMatrix(k)
		}
	})
	parallelFor(s.workers(), s.constrainedCount, s.reduceBodies)
	parallelFor(s.workers(), len(s.plan.batches), func(start, end int) {
		for b := start; b < end; b++ {
			s.transposeBatch(b)
		}
	})
}

func (s *solver) buildJacobianMatrix(k int) {
	info := &s.joints[k]
	desc := &s.descriptors[info.desc]
	b0 := &s.bodies[info.body0]
	b1 := &s.bodies[info.body1]

	info.preconditioner0, info.preconditioner1 = s.preconditioner(info)
	w0 := b0.weight * info.preconditioner0
	w1 := b1.weight * info.preconditioner1

	v0 := constraint.Velocity(b0.body.Velocity, b0.body.AngularVelocity)
	v1 := constraint.Velocity(b1.body.Velocity, b1.body.AngularVelocity)
	feedback := info.joint.Feedback()

	first := s.plan.rowStart[k]
	var partial0, partial1 constraint.Jacobian
	for r := range desc.RowCount {
		row := &desc.Rows[r]
		lhs := &s.lhs[first+r]
		rhs := &s.rhs[first+r]

		lhs.Jt = row.Jacobian
		lhs.JMinv = constraint.JacobianPair{
			Body0: inverseMassJacobian(b0, row.Jacobian.Body0),
			Body1: inverseMassJacobian(b1, row.Jacobian.Body1),
		}

		rhs.deltaAccel = -(lhs.JMinv.Body0.Dot(b0.external) + lhs.JMinv.Body1.Dot(b1.external))
		rhs.jointAccel = row.JointAccel
		rhs.coordAccel = 0
		rhs.maxImpact = 0

		target := row.Speed + row.Penetration*row.Stiffness*s.invTimestep
		if row.Restitution > 0 {
			vRel0 := row.Jacobian.Body0.Dot(v0) + row.Jacobian.Body1.Dot(v1)
			if vRel0 < 0 {
				target = max(target, -row.Restitution*vRel0)
			}
		}
		rhs.target = target

		rhs.low = row.Low
		rhs.high = row.High
		rhs.normalIndex = row.NormalIndex

		regularizer := max(row.Regularizer, s.cfg.MinRegularizer)
		diag := w0*lhs.JMinv.Body0.Dot(row.Jacobian.Body0) + w1*lhs.JMinv.Body1.Dot(row.Jacobian.Body1)
		rhs.diagDamp = diag * regularizer
		rhs.invJinvMJt = 0
		if diag > 0 {
			rhs.invJinvMJt = 1.0 / (diag * (1.0 + regularizer))
		}

		force := 0.0
		if r < len(feedback) {
			force = feedback[r].InitialGuess()
		}
		if info.bilateral {
			force = max(row.Low, min(row.High, force))
		}
		rhs.force = force

		partial0 = partial0.MulAdd(row.Jacobian.Body0, force)
		partial1 = partial1.MulAdd(row.Jacobian.Body1, force)
	}

	s.partials[2*k] = partial0
	s.partials[2*k+1] = partial1
}

func inverseMassJacobian(p *bodyProxy, jt constraint.Jacobian) constraint.Jacobian {
	if p.static {
		return constraint.Jacobian{}
	}

	return constraint.Jacobian{
		Linear:  jt.Linear.Mul(p.invMass),
		Angular: p.invInertia.Mul3x1(jt.Angular),
	}
}
