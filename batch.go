package ligament

import "slices"

// laneWidth is the number of joints solved side by side in a batch
const laneWidth = 8

type batch struct {
	// lanes holds indices into the sorted joint array, -1 for padding
	lanes [laneWidth]int
	// uniform batches have the same row count in every lane
	uniform bool
	// rowCount is the row count of lane 0, the largest of the batch
	rowCount    int
	soaRowStart int
}

// batchPlan is the joint order of a step: active joints by descending row
// count, then resting joints, grouped in batches of laneWidth
type batchPlan struct {
	// order[k] is the input index of the k-th joint of the sorted array
	order    []int
	rowStart []int
	rowCount []int
	// lane and batch of every sorted active joint
	lane    []int
	batchOf []int

	batches    []batch
	activeRows int
	totalRows  int
	soaRows    int
}

// organize sorts joints given their row counts and resting flags
func (b *batchPlan) organize(rowCounts []int, resting []bool) {
	n := len(rowCounts)
	b.order = resize(b.order, n)
	for i := range n {
		b.order[i] = i
	}
	slices.SortStableFunc(b.order, func(x, y int) int {
		if resting[x] != resting[y] {
			if resting[x] {
				return 1
			}
			return -1
		}
		if resting[x] {
			return 0
		}
		return rowCounts[y] - rowCounts[x]
	})

	b.rowStart = resize(b.rowStart, n)
	b.rowCount = resize(b.rowCount, n)
	b.lane = resize(b.lane, n)
	b.batchOf = resize(b.batchOf, n)

	active := 0
	b.totalRows, b.activeRows = 0, 0
	for k, i := range b.order {
		b.rowStart[k] = b.totalRows
		b.rowCount[k] = rowCounts[i]
		b.totalRows += rowCounts[i]
		b.lane[k], b.batchOf[k] = -1, -1
		if !resting[i] {
			active++
			b.activeRows += rowCounts[i]
		}
	}

	b.batches = b.batches[:0]
	b.soaRows = 0
	for start := 0; start < active; start += laneWidth {
		bt := batch{soaRowStart: b.soaRows, uniform: true}
		for l := range laneWidth {
			k := start + l
			if k >= active {
				bt.lanes[l] = -1
				bt.uniform = false
				continue
			}
			bt.lanes[l] = k
			b.lane[k] = l
			b.batchOf[k] = len(b.batches)
			if b.rowCount[k] != b.rowCount[start] {
				bt.uniform = false
			}
		}
		bt.rowCount = b.rowCount[start]
		b.soaRows += bt.rowCount
		b.batches = append(b.batches, bt)
	}
}
