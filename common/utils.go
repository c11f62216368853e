// utils.go
// Purpose: Small helpers shared by the packages (frame trimming, pending-set
// ordering, distances).
package common

import "sort"

func TrimZeros(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}

// SortedFloors returns the members of a floor set in ascending order.
func SortedFloors(set map[int]struct{}) []int {
	floors := make([]int, 0, len(set))
	for f := range set {
		floors = append(floors, f)
	}
	sort.Ints(floors)
	return floors
}

func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
