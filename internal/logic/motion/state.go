package motion

import "fmt"

// State of the stage controller. Values follow the numbering used by the
// operator tooling.
type State int

const (
	Idle State = iota
	Ready
	PositiveX
	NegativeX
	PositiveY
	NegativeY
	Rewind
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Ready:
		return "READY"
	case PositiveX:
		return "POSITIVE_X"
	case NegativeX:
		return "NEGATIVE_X"
	case PositiveY:
		return "POSITIVE_Y"
	case NegativeY:
		return "NEGATIVE_Y"
	case Rewind:
		return "REWIND"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
