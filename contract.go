package ligament

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
)

type violation int

const (
	violationRowOverflow violation = iota
	violationInvalidMass
	violationSkeleton
	violationNormalIndex
	violationCount
)

func (v violation) String() string {
	switch v {
	case violationRowOverflow:
		return "joint row overflow, rows truncated"
	case violationInvalidMass:
		return "invalid mass properties, body treated as static"
	case violationSkeleton:
		return "skeleton factorization failed, chain left to the iterative solver"
	case violationNormalIndex:
		return "normal index out of range, row bounds unlinked"
	}

	return "unknown violation"
}

// contracts reports programmer errors found while stepping: a panic in
// debug builds, one log line per kind otherwise
type contracts struct {
	log    logr.Logger
	logged [violationCount]atomic.Bool
	counts [violationCount]atomic.Int64
}

func (c *contracts) report(kind violation, keysAndValues ...any) {
	if debugContracts {
		panic(fmt.Sprintf("ligament: %s %v", kind, keysAndValues))
	}

	c.counts[kind].Add(1)
	if c.logged[kind].CompareAndSwap(false, true) {
		c.log.Error(nil, kind.String(), keysAndValues...)
	}
}

func (c *contracts) count(kind violation) int64 {
	return c.counts[kind].Load()
}
