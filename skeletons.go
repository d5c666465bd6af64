package ligament

import (
	"github.com/akmonengine/ligament/constraint"
	"github.com/akmonengine/ligament/skeleton"
)

// skeletonState binds a skeleton to the rows and bodies of the current step
type skeletonState struct {
	skeleton *skeleton.Skeleton
	active   bool

	// dense body indices; anchor is -1 when the anchor is static
	anchor int
	links  []int
	// sorted joint index of every link, and the offsets of its exact rows
	joints []int
	exact  [][]int

	anchorBlock skeleton.BodyBlock
	linkBlocks  []skeleton.BodyBlock
	jointBlocks []skeleton.JointBlock

	linkForces []constraint.Jacobian
	jointAccel [][]float64
	forces     [][]float64
}

// exactRow reports whether a row can be solved by the skeleton: unbounded and not linked to a normal row
func exactRow(rhs *rightHandSide) bool {
	return rhs.low <= constraint.MinBound && rhs.high >= constraint.MaxBound && rhs.normalIndex < 0
}

// initSkeletons factors the mass matrix of every skeleton with an active joint
func (s *solver) initSkeletons(w *World) {
	s.skeletons = resize(s.skeletons, len(w.skeletons))
	for i, skel := range w.skeletons {
		s.skeletons[i].skeleton = skel
	}

	s.stats.Skeletons = 0
	parallelFor(s.workers(), len(s.skeletons), func(start, end int) {
		for i := start; i < end; i++ {
			s.initSkeleton(&s.skeletons[i])
		}
	})
	for i := range s.skeletons {
		if s.skeletons[i].active {
			s.stats.Skeletons++
		}
	}
}

func (s *solver) initSkeleton(st *skeletonState) {
	skel := st.skeleton
	links := len(skel.Links)
	st.active = false
	st.links = resize(st.links, links)
	st.joints = resize(st.joints, links)
	st.exact = resize(st.exact, links)
	st.linkBlocks = resize(st.linkBlocks, links)
	st.jointBlocks = resize(st.jointBlocks, links)
	st.linkForces = resize(st.linkForces, links)
	st.jointAccel = resize(st.jointAccel, links)
	st.forces = resize(st.forces, links)

	st.anchor = s.dense[skel.Anchor]
	var anchorBlock *skeleton.BodyBlock
	if p := &s.bodies[st.anchor]; p.static {
		st.anchor = -1
	} else {
		st.anchorBlock = skeleton.BodyBlock{Mass: p.mass, Inertia: p.body.InertiaWorld()}
		anchorBlock = &st.anchorBlock
	}

	anyActive := false
	for i, link := range skel.Links {
		d := s.dense[link.Body]
		p := &s.bodies[d]
		if p.static {
			// mass properties became invalid
			return
		}
		st.links[i] = d
		st.linkBlocks[i] = skeleton.BodyBlock{Mass: p.mass, Inertia: p.body.InertiaWorld()}

		k := s.jointIndex[link.Joint]
		st.joints[i] = k
		st.exact[i] = st.exact[i][:0]
		st.jointBlocks[i].Rows = st.jointBlocks[i].Rows[:0]
		if s.joints[k].resting {
			continue
		}
		anyActive = true

		first := s.plan.rowStart[k]
		for r := range s.plan.rowCount[k] {
			rhs := &s.rhs[first+r]
			if !exactRow(rhs) {
				continue
			}
			st.exact[i] = append(st.exact[i], r)
			st.jointBlocks[i].Rows = append(st.jointBlocks[i].Rows, skeleton.RowBlock{
				Child:  s.lhs[first+r].Jt.Body0,
				Parent: s.lhs[first+r].Jt.Body1,
				Damp:   rhs.diagDamp,
			})
		}
		st.jointAccel[i] = resize(st.jointAccel[i], len(st.exact[i]))
		st.forces[i] = resize(st.forces[i], len(st.exact[i]))
	}
	if !anyActive {
		return
	}

	if err := skel.InitMassMatrix(anchorBlock, st.linkBlocks, st.jointBlocks); err != nil {
		s.contracts.report(violationSkeleton, "anchor", skel.Anchor, "error", err.Error())
		return
	}
	st.active = true
}

// nonTreeForce is the force on a skeleton body that the tree does not produce yet
func (s *solver) nonTreeForce(d int) constraint.Jacobian {
	p := &s.bodies[d]
	force := p.external.Add(s.internalForces[d])
	force.Angular = force.Angular.Sub(p.body.GyroTorque())

	return force
}

// updateSkeletons replaces the iterative forces of the exact rows of every
// skeleton by the direct solution, then refreshes the internal forces of its bodies
func (s *solver) updateSkeletons() {
	parallelFor(s.workers(), len(s.skeletons), func(start, end int) {
		for i := start; i < end; i++ {
			if s.skeletons[i].active {
				s.updateSkeleton(&s.skeletons[i])
			}
		}
	})
}

func (s *solver) updateSkeleton(st *skeletonState) {
	skel := st.skeleton

	var anchorForce constraint.Jacobian
	if st.anchor >= 0 {
		anchorForce = s.nonTreeForce(st.anchor)
	}
	for i, d := range st.links {
		st.linkForces[i] = s.nonTreeForce(d)
	}

	for i, link := range skel.Links {
		first := s.plan.rowStart[st.joints[i]]
		for e, r := range st.exact[i] {
			rhs := &s.rhs[first+r]
			jt := &s.lhs[first+r].Jt

			st.linkForces[i] = st.linkForces[i].MulAdd(jt.Body0, -rhs.force)
			switch {
			case link.Parent >= 0:
				st.linkForces[link.Parent] = st.linkForces[link.Parent].MulAdd(jt.Body1, -rhs.force)
			case st.anchor >= 0:
				anchorForce = anchorForce.MulAdd(jt.Body1, -rhs.force)
			}
			st.jointAccel[i][e] = rhs.coordAccel - rhs.deltaAccel
		}
	}

	if err := skel.CalculateReactionForces(anchorForce, st.linkForces, st.jointAccel, st.forces); err != nil {
		s.contracts.report(violationSkeleton, "anchor", skel.Anchor, "error", err.Error())
		st.active = false
		return
	}

	for i := range skel.Links {
		k := st.joints[i]
		if len(st.exact[i]) == 0 {
			continue
		}

		first := s.plan.rowStart[k]
		bt := &s.plan.batches[s.plan.batchOf[k]]
		lane := s.plan.lane[k]
		for e, r := range st.exact[i] {
			f := st.forces[i][e]
			s.rhs[first+r].force = f
			s.soa[bt.soaRowStart+r].force[lane] = f
		}

		var partial0, partial1 constraint.Jacobian
		for r := range s.plan.rowCount[k] {
			jt := &s.lhs[first+r].Jt
			partial0 = partial0.MulAdd(jt.Body0, s.rhs[first+r].force)
			partial1 = partial1.MulAdd(jt.Body1, s.rhs[first+r].force)
		}
		s.partials[2*k] = partial0
		s.partials[2*k+1] = partial1
	}

	if st.anchor >= 0 {
		s.reduceBody(st.anchor)
	}
	for _, d := range st.links {
		s.reduceBody(d)
	}
}
