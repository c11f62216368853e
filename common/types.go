package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// enums

type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirNone:
		return "none"
	default:
		return "undefined"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	dir, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = dir
	return nil
}

// ParseDirection accepts "up", "down", "none" and their one-letter forms.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u":
		return DirUp, nil
	case "down", "d":
		return DirDown, nil
	case "none", "n", "":
		return DirNone, nil
	default:
		return DirNone, fmt.Errorf("unknown direction %q", s)
	}
}

type CarStatus int

const (
	StatusIdle CarStatus = iota
	StatusMoving
	StatusDoorsOpening
	StatusLoading
	StatusDoorsClosing
)

var carStatusNames = [...]string{"idle", "moving", "doors_opening", "loading", "doors_closing"}

func (s CarStatus) String() string {
	if s < 0 || int(s) >= len(carStatusNames) {
		return "undefined"
	}
	return carStatusNames[s]
}

func (s CarStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *CarStatus) UnmarshalText(b []byte) error {
	for i, name := range carStatusNames {
		if name == string(b) {
			*s = CarStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown car status %q", string(b))
}

type RequestKind int

const (
	External RequestKind = iota
	Internal
)

func (k RequestKind) String() string {
	if k == Internal {
		return "internal"
	}
	return "external"
}

// Result is the synchronous outcome of a submission.
type Result int

const (
	Accepted Result = iota
	RejectedInvalidFloor
	RejectedInvalidDirection
	RejectedInvalidCar
)

var resultNames = [...]string{"accepted", "rejected_invalid_floor", "rejected_invalid_direction", "rejected_invalid_car"}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return "undefined"
	}
	return resultNames[r]
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(b []byte) error {
	for i, name := range resultNames {
		if name == string(b) {
			*r = Result(i)
			return nil
		}
	}
	return fmt.Errorf("unknown result %q", string(b))
}

// structs

// Request is never modified after construction; fields are only reachable
// through accessors.
type Request struct {
	id          string
	kind        RequestKind
	sourceFloor int
	targetFloor int
	direction   Direction
	carID       int
}

// NewExternalRequest builds a landing call. The target floor is the call
// floor itself; the rider's destination arrives later as a cab press.
func NewExternalRequest(floor int, dir Direction) Request {
	return Request{
		id:          uuid.NewString(),
		kind:        External,
		sourceFloor: floor,
		targetFloor: floor,
		direction:   dir,
		carID:       -1,
	}
}

func NewInternalRequest(floor int, carID int) Request {
	return Request{
		id:          uuid.NewString(),
		kind:        Internal,
		sourceFloor: -1,
		targetFloor: floor,
		direction:   DirNone,
		carID:       carID,
	}
}

func (r Request) ID() string           { return r.id }
func (r Request) Kind() RequestKind    { return r.kind }
func (r Request) SourceFloor() int     { return r.sourceFloor }
func (r Request) TargetFloor() int     { return r.targetFloor }
func (r Request) Direction() Direction { return r.direction }
func (r Request) CarID() int           { return r.carID }

// Floor is the floor this request adds to a car's pending set.
func (r Request) Floor() int {
	if r.Kind() == External {
		return r.sourceFloor
	}
	return r.targetFloor
}

func (r Request) String() string {
	if r.Kind() == External {
		return fmt.Sprintf("call floor=%d dir=%s", r.sourceFloor, r.direction)
	}
	return fmt.Sprintf("press floor=%d car=%d", r.targetFloor, r.carID)
}

// CarSnapshot is a point-in-time copy of one car's state. Pending is sorted
// ascending.
type CarSnapshot struct {
	ID        int       `json:"id"`
	Floor     int       `json:"floor"`
	Direction Direction `json:"direction"`
	Status    CarStatus `json:"status"`
	Pending   []int     `json:"pending"`
}

func (s CarSnapshot) HasPending(floor int) bool {
	for _, f := range s.Pending {
		if f == floor {
			return true
		}
	}
	return false
}

func (s CarSnapshot) String() string {
	return fmt.Sprintf("car %d floor=%d dir=%s status=%s pending=%v", s.ID, s.Floor, s.Direction, s.Status, s.Pending)
}
