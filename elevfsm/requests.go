package elevfsm

import "elevdispatch/common"

// nextTarget picks the pending floor the car heads for. pending must be
// sorted ascending and non-empty.
//
//	Up:   smallest pending >= floor, else the highest pending
//	Down: largest pending <= floor, else the lowest pending
//	None: closest pending, ties to the lower floor
func nextTarget(floor int, dir common.Direction, pending []int) int {
	switch dir {
	case common.DirUp:
		for _, p := range pending {
			if p >= floor {
				return p
			}
		}
		return pending[len(pending)-1]

	case common.DirDown:
		for i := len(pending) - 1; i >= 0; i-- {
			if pending[i] <= floor {
				return pending[i]
			}
		}
		return pending[0]

	default:
		best := pending[0]
		for _, p := range pending[1:] {
			// ascending order, so strict < keeps the lower floor on a tie
			if common.Abs(p-floor) < common.Abs(best-floor) {
				best = p
			}
		}
		return best
	}
}
