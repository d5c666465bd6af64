package skeleton

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/ligament/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// BodyBlock is the mass matrix of a body in world space
type BodyBlock struct {
	Mass    float64
	Inertia mgl64.Mat3
}

// RowBlock is an exact row of a tree joint: Child is its Jacobian on the
// link body, Parent on the body the link hangs from, Damp the regularization.
type RowBlock struct {
	Child  constraint.Jacobian
	Parent constraint.Jacobian
	Damp   float64
}

// JointBlock holds the exact rows of the joint of one link
type JointBlock struct {
	Rows []RowBlock
}

type node struct {
	dim      int
	parent   int
	children []int

	link    int
	isJoint bool

	diagonal  *mat.Dense // H_ii
	offParent *mat.Dense // H_i,parent
	factor    *mat.Dense // J_i = D_i⁻¹ H_i,parent
	lu        mat.LU

	x   *mat.VecDense
	tmp *mat.VecDense
}

type massMatrix struct {
	nodes       []node
	anchorNode  int
	bodyNodes   []int
	jointNodes  []int
	initialized bool
}

// InitMassMatrix builds and factors the block matrix of the tree. anchor is
// nil when the anchor is static; links[i] and joints[i] describe link i.
func (s *Skeleton) InitMassMatrix(anchor *BodyBlock, links []BodyBlock, joints []JointBlock) error {
	if len(links) != len(s.Links) || len(joints) != len(s.Links) {
		return fmt.Errorf("%w: %d links, %d bodies, %d joints", ErrTopology, len(s.Links), len(links), len(joints))
	}

	m := &s.matrix
	m.nodes = m.nodes[:0]
	m.bodyNodes = m.bodyNodes[:0]
	m.jointNodes = m.jointNodes[:0]
	m.anchorNode = -1
	m.initialized = false

	if anchor != nil {
		m.anchorNode = m.addNode(node{dim: 6, parent: -1, link: -1, diagonal: bodyDiagonal(*anchor)})
	}

	// parents are created before their children: creation order is a pre-order
	for i, link := range s.Links {
		parentBody := m.anchorNode
		if link.Parent >= 0 {
			parentBody = m.bodyNodes[link.Parent]
		}

		rows := joints[i].Rows
		jointNode := -1
		if len(rows) > 0 {
			jointNode = m.addNode(node{
				dim:       len(rows),
				parent:    parentBody,
				link:      i,
				isJoint:   true,
				diagonal:  jointDiagonal(rows),
				offParent: parentJacobian(rows),
			})
		}
		m.jointNodes = append(m.jointNodes, jointNode)

		bodyNode := m.addNode(node{
			dim:      6,
			parent:   jointNode,
			link:     i,
			diagonal: bodyDiagonal(links[i]),
		})
		if jointNode >= 0 {
			m.nodes[bodyNode].offParent = childJacobianT(rows)
		}
		m.bodyNodes = append(m.bodyNodes, bodyNode)
	}

	for i := range m.nodes {
		if p := m.nodes[i].parent; p >= 0 {
			m.nodes[p].children = append(m.nodes[p].children, i)
		}
	}

	if err := m.factorize(); err != nil {
		return err
	}
	m.initialized = true

	return nil
}

func (m *massMatrix) addNode(n node) int {
	n.x = mat.NewVecDense(n.dim, nil)
	n.tmp = mat.NewVecDense(n.dim, nil)
	m.nodes = append(m.nodes, n)

	return len(m.nodes) - 1
}

// factorize runs D_i = H_ii - Σ H_ciᵀ J_c and J_i = D_i⁻¹ H_ip, children first
func (m *massMatrix) factorize() error {
	for i := len(m.nodes) - 1; i >= 0; i-- {
		n := &m.nodes[i]

		d := mat.DenseCopyOf(n.diagonal)
		for _, c := range n.children {
			child := &m.nodes[c]
			var schur mat.Dense
			schur.Mul(child.offParent.T(), child.factor)
			d.Sub(d, &schur)
		}

		n.lu.Factorize(d)
		if math.IsInf(n.lu.Cond(), 1) {
			return fmt.Errorf("%w: node %d", ErrSingular, i)
		}

		if n.parent >= 0 {
			_, cols := n.offParent.Dims()
			n.factor = mat.NewDense(n.dim, cols, nil)
			if err := solveTo(&n.lu, n.factor, n.offParent); err != nil {
				return fmt.Errorf("%w: node %d: %v", ErrSingular, i, err)
			}
		}
	}

	return nil
}

func solveTo(lu *mat.LU, dst *mat.Dense, b mat.Matrix) error {
	err := lu.SolveTo(dst, false, b)
	var cond mat.Condition
	if errors.As(err, &cond) {
		// ill-conditioned, but the result is usable
		return nil
	}

	return err
}

// CalculateReactionForces solves the tree for the forces of its exact rows.
// anchorForce is ignored for a static anchor; linkForces[i] is the force on
// link i not produced by the tree; jointAccel[i] the target accelerations of
// the exact rows of link i. The row forces are written into forces[i].
func (s *Skeleton) CalculateReactionForces(anchorForce constraint.Jacobian, linkForces []constraint.Jacobian, jointAccel [][]float64, forces [][]float64) error {
	m := &s.matrix
	if !m.initialized {
		return fmt.Errorf("%w: mass matrix not initialized", ErrTopology)
	}

	if m.anchorNode >= 0 {
		setSpatial(m.nodes[m.anchorNode].x, anchorForce)
	}
	for i := range s.Links {
		setSpatial(m.nodes[m.bodyNodes[i]].x, linkForces[i])
		if j := m.jointNodes[i]; j >= 0 {
			x := m.nodes[j].x
			for r := range m.nodes[j].dim {
				x.SetVec(r, jointAccel[i][r])
			}
		}
	}

	// forward: x_i -= Σ J_cᵀ x_c
	for i := len(m.nodes) - 1; i >= 0; i-- {
		n := &m.nodes[i]
		for _, c := range n.children {
			child := &m.nodes[c]
			n.tmp.MulVec(child.factor.T(), child.x)
			n.x.SubVec(n.x, n.tmp)
		}
	}

	for i := range m.nodes {
		n := &m.nodes[i]
		n.tmp.CloneFromVec(n.x)
		err := n.lu.SolveVecTo(n.x, false, n.tmp)
		var cond mat.Condition
		if err != nil && !errors.As(err, &cond) {
			return fmt.Errorf("%w: node %d: %v", ErrSingular, i, err)
		}
	}

	// backward: x_i -= J_i x_parent
	for i := range m.nodes {
		n := &m.nodes[i]
		if n.parent < 0 {
			continue
		}
		n.tmp.MulVec(n.factor, m.nodes[n.parent].x)
		n.x.SubVec(n.x, n.tmp)
	}

	for i := range s.Links {
		j := m.jointNodes[i]
		if j < 0 {
			continue
		}
		x := m.nodes[j].x
		for r := range m.nodes[j].dim {
			forces[i][r] = -x.AtVec(r)
		}
	}

	return nil
}

func bodyDiagonal(body BodyBlock) *mat.Dense {
	d := mat.NewDense(6, 6, nil)
	for i := range 3 {
		d.Set(i, i, body.Mass)
		for j := range 3 {
			d.Set(3+i, 3+j, body.Inertia.At(i, j))
		}
	}

	return d
}

func jointDiagonal(rows []RowBlock) *mat.Dense {
	d := mat.NewDense(len(rows), len(rows), nil)
	for i, row := range rows {
		d.Set(i, i, -row.Damp)
	}

	return d
}

// parentJacobian is H_joint,parent: one row per constraint row
func parentJacobian(rows []RowBlock) *mat.Dense {
	d := mat.NewDense(len(rows), 6, nil)
	for i, row := range rows {
		setRow(d, i, row.Parent)
	}

	return d
}

// childJacobianT is H_child,joint: the transposed Jacobians on the link body
func childJacobianT(rows []RowBlock) *mat.Dense {
	d := mat.NewDense(6, len(rows), nil)
	for i, row := range rows {
		for k := range 3 {
			d.Set(k, i, row.Child.Linear[k])
			d.Set(3+k, i, row.Child.Angular[k])
		}
	}

	return d
}

func setRow(d *mat.Dense, i int, j constraint.Jacobian) {
	for k := range 3 {
		d.Set(i, k, j.Linear[k])
		d.Set(i, 3+k, j.Angular[k])
	}
}

func setSpatial(v *mat.VecDense, j constraint.Jacobian) {
	for k := range 3 {
		v.SetVec(k, j.Linear[k])
		v.SetVec(3+k, j.Angular[k])
	}
}
