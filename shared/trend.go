package shared

// Trend represents the market trend of an instrument.
type Trend int

const (
	UnavailableTrend Trend = iota
	UpTrend
	DownTrend
)

// String stringifies the provided trend.
func (t Trend) String() string {
	switch t {
	case UnavailableTrend:
		return "N/A"
	case UpTrend:
		return "Up trend"
	case DownTrend:
		return "Down trend"
	default:
		return "unknown trend"
	}
}
