package ligament

import "github.com/akmonengine/ligament/constraint"

// unconstrainedRange is the range of unconstrained dynamic bodies in solver order
func (s *solver) unconstrainedRange() (int, int) {
	start := s.constrainedCount
	return start, start + s.partition.unconstrainedCount
}

// integrateUnconstrainedBodies advances the velocity of free bodies over the
// whole step. A sleeping free body wakes when its external force, gravity
// included, would move it noticeably over the step.
func (s *solver) integrateUnconstrainedBodies() {
	threshold := 0.1 * s.cfg.FreezeSpeed * s.cfg.FreezeSpeed

	first, last := s.unconstrainedRange()
	parallelFor(s.workers(), last-first, func(start, end int) {
		for i := first + start; i < first+end; i++ {
			p := &s.bodies[i]
			if p.static {
				continue
			}
			if p.resting {
				if !exceedsStep(p, p.external, s.timestep, threshold) {
					continue
				}
				p.resting = false
				p.body.Wake()
			}
			p.body.IntegrateForceAndTorque(p.external.Linear, p.external.Angular, s.timestep)
		}
	})
}

// exceedsStep reports whether force applied over dt changes the squared
// linear or angular velocity of p by more than threshold
func exceedsStep(p *bodyProxy, force constraint.Jacobian, dt, threshold float64) bool {
	velocStep := force.Linear.Mul(p.invMass * dt)
	omegaStep := p.invInertia.Mul3x1(force.Angular).Mul(dt)
	return velocStep.Dot(velocStep) > threshold || omegaStep.Dot(omegaStep) > threshold
}

// integrateBodiesVelocity advances the constrained bodies over one sub-step.
// A resting body is woken, for the rest of the step, when its forces would
// move it noticeably.
func (s *solver) integrateBodiesVelocity() {
	threshold := 0.1 * s.cfg.FreezeSpeed * s.cfg.FreezeSpeed

	parallelFor(s.workers(), s.constrainedCount, func(start, end int) {
		for i := start; i < end; i++ {
			p := &s.bodies[i]
			if p.static {
				continue
			}

			force := p.external.Add(s.internalForces[i])
			if p.resting {
				if exceedsStep(p, force, s.h, threshold) {
					p.resting = false
					p.body.Wake()
				}
				continue
			}

			p.body.IntegrateGyroSubstep(s.h)
			p.body.IntegrateForceAndTorque(force.Linear, force.Angular, s.h)
		}
	})
}

// integrateBodies moves every awake dynamic body along its final velocity
// and updates its sleep window
func (s *solver) integrateBodies() {
	freezeSpeed2 := s.cfg.FreezeSpeed * s.cfg.FreezeSpeed
	freezeAccel2 := s.cfg.FreezeAccel * s.cfg.FreezeAccel

	parallelFor(s.workers(), len(s.bodies), func(start, end int) {
		for i := start; i < end; i++ {
			p := &s.bodies[i]
			if p.static || p.resting {
				continue
			}
			p.body.IntegrateVelocity(s.timestep)
			p.body.EvaluateSleepState(s.timestep, freezeSpeed2, freezeAccel2, s.cfg.SleepFrames)
		}
	})
}

// determineSleepStates puts to sleep the islands whose bodies all reached
// equilibrium. Sleeping bodies get exactly zero velocity.
func (s *solver) determineSleepStates() {
	s.islandSleep = resize(s.islandSleep, len(s.live))
	for i := range s.constrainedCount {
		if island := s.bodies[i].island; island >= 0 {
			s.islandSleep[island] = true
		}
	}
	for i := range s.constrainedCount {
		p := &s.bodies[i]
		if p.static || p.island < 0 {
			continue
		}
		s.islandSleep[p.island] = s.islandSleep[p.island] && p.body.IsSleeping()
	}

	for i := range s.constrainedCount {
		p := &s.bodies[i]
		if p.static || p.island < 0 {
			continue
		}
		if s.islandSleep[p.island] {
			p.body.Sleep()
		} else {
			p.body.SetEquilibrium(false)
		}
	}

	first, last := s.unconstrainedRange()
	for i := first; i < last; i++ {
		p := &s.bodies[i]
		if !p.static && !p.resting && p.body.IsSleeping() {
			p.body.Sleep()
		}
	}
}
