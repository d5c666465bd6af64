package ligament

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/akmonengine/ligament/constraint"
)

const (
	ON_SLEEP EventType = iota
	ON_WAKE
	ON_JOINT_BREAK
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Sleep/Wake events
type SleepEvent struct {
	Body actor.BodyID
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body actor.BodyID
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// JointBreakEvent is sent once a breakable joint exceeded its break force.
// The joint is already removed from the world.
type JointBreakEvent struct {
	Joint       constraint.JointID
	Body0       actor.BodyID
	Body1       actor.BodyID
	BrokenJoint constraint.Joint
}

func (e JointBreakEvent) Type() EventType { return ON_JOINT_BREAK }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	sleepStates map[actor.BodyID]bool
}

func NewEvents() Events {
	return Events{
		listeners:   make(map[EventType][]EventListener),
		buffer:      make([]Event, 0, 256),
		sleepStates: make(map[actor.BodyID]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) emitJointBreak(id constraint.JointID, joint constraint.Joint) {
	body0, body1 := joint.Bodies()
	e.buffer = append(e.buffer, JointBreakEvent{Joint: id, Body0: body0, Body1: body1, BrokenJoint: joint})
}

// processSleepEvents compares the equilibrium of every body with the one seen at the previous step
func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		if body == nil || body.IsStatic() {
			continue
		}

		trackedState, exists := e.sleepStates[body.ID]
		if !exists {
			e.sleepStates[body.ID] = body.IsSleeping()
			continue
		}

		if !trackedState && body.IsSleeping() {
			e.buffer = append(e.buffer, SleepEvent{Body: body.ID})
			e.sleepStates[body.ID] = true
		} else if trackedState && !body.IsSleeping() {
			e.buffer = append(e.buffer, WakeEvent{Body: body.ID})
			e.sleepStates[body.ID] = false
		}
	}
}

// forget drops the tracked state of a removed body, its handle may be reused
func (e *Events) forget(id actor.BodyID) {
	delete(e.sleepStates, id)
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
