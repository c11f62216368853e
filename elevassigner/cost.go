package elevassigner

import "elevdispatch/common"

const (
	perStopPenalty    = 2
	perPendingPenalty = 10
)

// Cost scores how expensive it is for the car in s to serve the call r.
// Lower is better. It depends only on its arguments.
func Cost(s common.CarSnapshot, r common.Request) int {
	src := r.Floor()

	if s.Status == common.StatusIdle {
		return common.Abs(s.Floor - src)
	}

	if s.Direction == r.Direction() && isAhead(s.Floor, s.Direction, src) {
		stops := 0
		for _, p := range s.Pending {
			if between(s.Floor, src, p) {
				stops++
			}
		}
		return common.Abs(src-s.Floor) + perStopPenalty*stops
	}

	furthest := furthestPending(s)
	return common.Abs(s.Floor-furthest) + common.Abs(furthest-src) + perPendingPenalty*len(s.Pending)
}

func isAhead(floor int, dir common.Direction, src int) bool {
	switch dir {
	case common.DirUp:
		return src >= floor
	case common.DirDown:
		return src <= floor
	default:
		return false
	}
}

// between reports whether p lies strictly past floor and no further than src.
func between(floor, src, p int) bool {
	if src >= floor {
		return p > floor && p <= src
	}
	return p < floor && p >= src
}

func furthestPending(s common.CarSnapshot) int {
	if len(s.Pending) == 0 {
		return s.Floor
	}
	switch s.Direction {
	case common.DirUp:
		return s.Pending[len(s.Pending)-1]
	case common.DirDown:
		return s.Pending[0]
	default:
		return s.Floor
	}
}
