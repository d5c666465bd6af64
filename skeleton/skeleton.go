// Package skeleton solves the exact rows of an articulated chain with a
// linear-time block LDLᵀ elimination over the tree of bodies and joints.
package skeleton

import (
	"errors"
	"fmt"
	"slices"

	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
)

var (
	// ErrTopology is returned when a link does not extend the tree
	ErrTopology = errors.New("skeleton: invalid topology")
	// ErrSingular is returned when a block of the factorization cannot be inverted
	ErrSingular = errors.New("skeleton: singular mass matrix")
)

// Link is a body of the tree and the joint attaching it to its parent.
// The joint's body 0 is Body and its body 1 the parent's body (or the anchor).
type Link struct {
	Body   actor.BodyID
	Joint  constraint.JointID
	Parent int // index of the parent link, -1 for the anchor
}

// Skeleton is a tree of bodies rooted at an anchor body
type Skeleton struct {
	Anchor actor.BodyID
	Links  []Link

	loops  []constraint.JointID
	matrix massMatrix
}

func New(anchor actor.BodyID) *Skeleton {
	return &Skeleton{Anchor: anchor}
}

// AddLink attaches body to the link parent (-1 for the anchor) through joint
// and returns the index of the new link
func (s *Skeleton) AddLink(body actor.BodyID, joint constraint.JointID, parent int) (int, error) {
	if parent < -1 || parent >= len(s.Links) {
		return -1, fmt.Errorf("%w: parent link %d out of range", ErrTopology, parent)
	}
	if body == s.Anchor || s.LinkOf(body) >= 0 {
		return -1, fmt.Errorf("%w: body %d already in the tree", ErrTopology, body)
	}
	if slices.ContainsFunc(s.Links, func(l Link) bool { return l.Joint == joint }) {
		return -1, fmt.Errorf("%w: joint %d already in the tree", ErrTopology, joint)
	}

	s.Links = append(s.Links, Link{Body: body, Joint: joint, Parent: parent})

	return len(s.Links) - 1, nil
}

// LinkOf returns the link index of body, or -1
func (s *Skeleton) LinkOf(body actor.BodyID) int {
	return slices.IndexFunc(s.Links, func(l Link) bool { return l.Body == body })
}

// Contains reports whether body is the anchor or a link of the tree
func (s *Skeleton) Contains(body actor.BodyID) bool {
	return body == s.Anchor || s.LinkOf(body) >= 0
}

// HasJoint reports whether joint is a tree edge
func (s *Skeleton) HasJoint(joint constraint.JointID) bool {
	return slices.ContainsFunc(s.Links, func(l Link) bool { return l.Joint == joint })
}

// ParentBody returns the body link i hangs from
func (s *Skeleton) ParentBody(i int) actor.BodyID {
	if s.Links[i].Parent < 0 {
		return s.Anchor
	}

	return s.Links[s.Links[i].Parent].Body
}

// Validate checks that every link refers to an earlier link
func (s *Skeleton) Validate() error {
	if len(s.Links) == 0 {
		return fmt.Errorf("%w: no links", ErrTopology)
	}
	for i, link := range s.Links {
		if link.Parent < -1 || link.Parent >= i {
			return fmt.Errorf("%w: link %d has parent %d", ErrTopology, i, link.Parent)
		}
	}

	return nil
}

// ClearLoops forgets the closed-loop joints of the previous step
func (s *Skeleton) ClearLoops() {
	s.loops = s.loops[:0]
}

// AddLoopJoint records a joint touching the tree that is not one of its edges
func (s *Skeleton) AddLoopJoint(joint constraint.JointID) {
	s.loops = append(s.loops, joint)
}

// LoopJoints returns the closed-loop joints found at the last assembly
func (s *Skeleton) LoopJoints() []constraint.JointID {
	return s.loops
}
