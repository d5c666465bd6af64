package ligament

import (
	"github.com/akmonengine/ligament/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

type lanes [laneWidth]float64

type soaVector struct {
	x, y, z lanes
}

// soaJacobian is a spatial vector per lane
type soaJacobian struct {
	linear  soaVector
	angular soaVector
}

func (v *soaVector) set(l int, value mgl64.Vec3) {
	v.x[l], v.y[l], v.z[l] = value[0], value[1], value[2]
}

func (v *soaVector) get(l int) mgl64.Vec3 {
	return mgl64.Vec3{v.x[l], v.y[l], v.z[l]}
}

func (j *soaJacobian) set(l int, value constraint.Jacobian) {
	j.linear.set(l, value.Linear)
	j.angular.set(l, value.Angular)
}

func (j *soaJacobian) get(l int) constraint.Jacobian {
	return constraint.Jacobian{Linear: j.linear.get(l), Angular: j.angular.get(l)}
}

func (j *soaJacobian) dot(l int, o *soaJacobian) float64 {
	return j.linear.x[l]*o.linear.x[l] + j.linear.y[l]*o.linear.y[l] + j.linear.z[l]*o.linear.z[l] +
		j.angular.x[l]*o.angular.x[l] + j.angular.y[l]*o.angular.y[l] + j.angular.z[l]*o.angular.z[l]
}

// mulAdd adds o·s to lane l
func (j *soaJacobian) mulAdd(l int, o *soaJacobian, s float64) {
	j.linear.x[l] += o.linear.x[l] * s
	j.linear.y[l] += o.linear.y[l] * s
	j.linear.z[l] += o.linear.z[l] * s
	j.angular.x[l] += o.angular.x[l] * s
	j.angular.y[l] += o.angular.y[l] * s
	j.angular.z[l] += o.angular.z[l] * s
}

// soaRow is row r of the 8 joints of a batch
type soaRow struct {
	Jt0    soaJacobian
	Jt1    soaJacobian
	JMinv0 soaJacobian
	JMinv1 soaJacobian

	force      lanes
	coordAccel lanes
	diagDamp   lanes
	invJinvMJt lanes
	low        lanes
	high       lanes
	impact     lanes

	normalIndex [laneWidth]int
}

func (row *soaRow) setLane(l int, lhs *leftHandSide, rhs *rightHandSide) {
	row.Jt0.set(l, lhs.Jt.Body0)
	row.Jt1.set(l, lhs.Jt.Body1)
	row.JMinv0.set(l, lhs.JMinv.Body0)
	row.JMinv1.set(l, lhs.JMinv.Body1)
	row.force[l] = rhs.force
	row.coordAccel[l] = rhs.coordAccel
	row.diagDamp[l] = rhs.diagDamp
	row.invJinvMJt[l] = rhs.invJinvMJt
	row.low[l] = rhs.low
	row.high[l] = rhs.high
	row.impact[l] = 0
	row.normalIndex[l] = rhs.normalIndex
}

// transposeBatch copies the rows of the joints of batch b into the SoA array
func (s *solver) transposeBatch(b int) {
	bt := &s.plan.batches[b]
	rows := s.soa[bt.soaRowStart : bt.soaRowStart+bt.rowCount]
	if bt.uniform {
		s.transposeUniform(bt, rows)
	} else {
		s.transposeMixed(bt, rows)
	}
}

// every lane has every row
func (s *solver) transposeUniform(bt *batch, rows []soaRow) {
	for r := range rows {
		row := &rows[r]
		for l, k := range bt.lanes {
			index := s.plan.rowStart[k] + r
			row.setLane(l, &s.lhs[index], &s.rhs[index])
		}
	}
}

// missing rows and padding lanes keep a zero Jacobian and zero bounds
func (s *solver) transposeMixed(bt *batch, rows []soaRow) {
	clear(rows)
	for r := range rows {
		for l := range laneWidth {
			rows[r].normalIndex[l] = constraint.IndependentRow
		}
	}

	for l, k := range bt.lanes {
		if k < 0 {
			continue
		}
		start := s.plan.rowStart[k]
		for r := range s.plan.rowCount[k] {
			rows[r].setLane(l, &s.lhs[start+r], &s.rhs[start+r])
		}
	}
}
