package ligament

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
)

// registry is the arena of bodies and joints. Handles are slot indices;
// freed slots are reused, most recently freed first.
type registry struct {
	bodies     []*actor.RigidBody
	freeBodies []actor.BodyID
	// references counts the live joints using each body slot
	references []int

	joints     []constraint.Joint
	freeJoints []constraint.JointID
}

func (r *registry) addBody(body *actor.RigidBody) actor.BodyID {
	var id actor.BodyID
	if n := len(r.freeBodies); n > 0 {
		id = r.freeBodies[n-1]
		r.freeBodies = r.freeBodies[:n-1]
		r.bodies[id] = body
		r.references[id] = 0
	} else {
		id = actor.BodyID(len(r.bodies))
		r.bodies = append(r.bodies, body)
		r.references = append(r.references, 0)
	}
	body.ID = id

	return id
}

func (r *registry) body(id actor.BodyID) *actor.RigidBody {
	if id < 0 || int(id) >= len(r.bodies) {
		return nil
	}

	return r.bodies[id]
}

func (r *registry) removeBody(id actor.BodyID) {
	r.bodies[id].ID = actor.InvalidBody
	r.bodies[id] = nil
	r.freeBodies = append(r.freeBodies, id)
}

func (r *registry) addJoint(joint constraint.Joint) constraint.JointID {
	body0, body1 := joint.Bodies()
	r.references[body0]++
	r.references[body1]++

	if n := len(r.freeJoints); n > 0 {
		id := r.freeJoints[n-1]
		r.freeJoints = r.freeJoints[:n-1]
		r.joints[id] = joint
		return id
	}

	r.joints = append(r.joints, joint)
	return constraint.JointID(len(r.joints) - 1)
}

func (r *registry) joint(id constraint.JointID) constraint.Joint {
	if id < 0 || int(id) >= len(r.joints) {
		return nil
	}

	return r.joints[id]
}

func (r *registry) removeJoint(id constraint.JointID) {
	body0, body1 := r.joints[id].Bodies()
	r.references[body0]--
	r.references[body1]--

	r.joints[id] = nil
	r.freeJoints = append(r.freeJoints, id)
}

func (r *registry) bodyCount() int {
	return len(r.bodies) - len(r.freeBodies)
}

func (r *registry) jointCount() int {
	return len(r.joints) - len(r.freeJoints)
}
