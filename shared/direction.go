package shared

// Direction represents a trade direction.
type Direction int

const (
	Buy Direction = iota
	Sell
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "unknown"
	}
}
