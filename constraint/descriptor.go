package constraint

import (
	"github.com/akmonengine/ligament/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxRows is the maximum number of rows a single joint may submit per step
const MaxRows = 24

const (
	MinBound = -1.0e15
	MaxBound = 1.0e15

	// IndependentRow marks a row whose bounds are not scaled by another row
	IndependentRow = -1
)

// Row is one scalar constraint equation filled by a joint
type Row struct {
	Jacobian JacobianPair

	// JointAccel is an extra target acceleration (motors, springs)
	JointAccel float64
	// Speed is the target relative velocity along the row
	Speed float64
	// Penetration is the position error to recover, Stiffness the fraction recovered per step
	Penetration float64
	Stiffness   float64
	Restitution float64

	Low         float64
	High        float64
	NormalIndex int
	Regularizer float64
}

// Descriptor is handed to Joint.JacobianDerivative. It carries read-only
// views of both bodies and a fixed-capacity row buffer.
type Descriptor struct {
	Body0 *actor.RigidBody
	Body1 *actor.RigidBody

	Timestep    float64
	InvTimestep float64
	// Stiffness is the default position recovery factor of new rows
	Stiffness float64

	Rows     [MaxRows]Row
	RowCount int
	// Capacity is the number of rows the joint declared, capped at MaxRows
	Capacity int
	// Overflow counts rows rejected because Capacity was reached
	Overflow int
}

// Reset prepares the descriptor for a joint with capacity rows
func (d *Descriptor) Reset(body0, body1 *actor.RigidBody, timestep float64, capacity int, stiffness float64) {
	d.Body0 = body0
	d.Body1 = body1
	d.Timestep = timestep
	d.InvTimestep = 1.0 / timestep
	d.Stiffness = stiffness
	d.RowCount = 0
	d.Overflow = 0
	d.Capacity = min(max(capacity, 0), MaxRows)
}

func (d *Descriptor) addRow(jacobian JacobianPair) int {
	if d.RowCount >= d.Capacity {
		d.Overflow++
		return -1
	}

	index := d.RowCount
	d.Rows[index] = Row{
		Jacobian:    jacobian,
		Stiffness:   d.Stiffness,
		Low:         MinBound,
		High:        MaxBound,
		NormalIndex: IndependentRow,
	}
	d.RowCount++

	return index
}

// AddLinearRow constrains pivot0 (on body 0) and pivot1 (on body 1), both in
// world space, along dir. The position error recovered is -(pivot0-pivot1)·dir.
func (d *Descriptor) AddLinearRow(pivot0, pivot1, dir mgl64.Vec3) int {
	r0 := pivot0.Sub(d.Body0.Transform.Position)
	r1 := pivot1.Sub(d.Body1.Transform.Position)

	index := d.addRow(JacobianPair{
		Body0: Jacobian{Linear: dir, Angular: r0.Cross(dir)},
		Body1: Jacobian{Linear: dir.Mul(-1), Angular: r1.Cross(dir).Mul(-1)},
	})
	if index >= 0 {
		d.Rows[index].Penetration = -pivot0.Sub(pivot1).Dot(dir)
	}

	return index
}

// AddAngularRow constrains the relative rotation about axis. angleError is
// the signed angle of body 0 relative to body 1 about axis.
func (d *Descriptor) AddAngularRow(axis mgl64.Vec3, angleError float64) int {
	index := d.addRow(JacobianPair{
		Body0: Jacobian{Angular: axis},
		Body1: Jacobian{Angular: axis.Mul(-1)},
	})
	if index >= 0 {
		d.Rows[index].Penetration = -angleError
	}

	return index
}

// Sanitize repairs a descriptor whose fields were written directly. RowCount
// is clamped to the declared capacity and normal links that do not point at
// an earlier row are cut. It returns the number of rows dropped and links cut.
func (d *Descriptor) Sanitize(capacity int) (dropped, unlinked int) {
	d.Capacity = min(max(capacity, 0), MaxRows)
	if d.RowCount > d.Capacity {
		dropped = d.RowCount - d.Capacity
		d.RowCount = d.Capacity
	} else if d.RowCount < 0 {
		d.RowCount = 0
	}

	for r := range d.RowCount {
		row := &d.Rows[r]
		if row.NormalIndex < IndependentRow || row.NormalIndex >= r {
			row.NormalIndex = IndependentRow
			unlinked++
		}
	}

	return dropped, unlinked
}

func (d *Descriptor) valid(row int) bool {
	return row >= 0 && row < d.RowCount
}

func (d *Descriptor) SetBounds(row int, low, high float64) {
	if d.valid(row) {
		d.Rows[row].Low = low
		d.Rows[row].High = high
	}
}

func (d *Descriptor) SetLowerBound(row int, low float64) {
	if d.valid(row) {
		d.Rows[row].Low = low
	}
}

func (d *Descriptor) SetUpperBound(row int, high float64) {
	if d.valid(row) {
		d.Rows[row].High = high
	}
}

// SetNormalIndex links the bounds of row to the force of normal, which must be an earlier row
func (d *Descriptor) SetNormalIndex(row, normal int) {
	if d.valid(row) && normal >= 0 && normal < row {
		d.Rows[row].NormalIndex = normal
	}
}

func (d *Descriptor) SetSpeed(row int, speed float64) {
	if d.valid(row) {
		d.Rows[row].Speed = speed
	}
}

func (d *Descriptor) SetMotorAcceleration(row int, accel float64) {
	if d.valid(row) {
		d.Rows[row].JointAccel = accel
	}
}

func (d *Descriptor) SetPenetration(row int, penetration float64) {
	if d.valid(row) {
		d.Rows[row].Penetration = penetration
	}
}

func (d *Descriptor) SetStiffness(row int, stiffness float64) {
	if d.valid(row) {
		d.Rows[row].Stiffness = stiffness
	}
}

func (d *Descriptor) SetRestitution(row int, restitution float64) {
	if d.valid(row) {
		d.Rows[row].Restitution = restitution
	}
}

func (d *Descriptor) SetRegularizer(row int, regularizer float64) {
	if d.valid(row) {
		d.Rows[row].Regularizer = regularizer
	}
}

// RelativeVelocity returns J·v of row for the bodies' current velocities
func (d *Descriptor) RelativeVelocity(row int) float64 {
	if !d.valid(row) {
		return 0
	}

	jacobian := d.Rows[row].Jacobian
	v0 := Velocity(d.Body0.Velocity, d.Body0.AngularVelocity)
	v1 := Velocity(d.Body1.Velocity, d.Body1.AngularVelocity)

	return jacobian.Body0.Dot(v0) + jacobian.Body1.Dot(v1)
}
