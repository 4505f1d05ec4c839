package model

// Trend is the qualitative price-movement marker on a record:
// "+++" strong rise through "---" strong fall. Empty means flat or unknown.
type Trend string

const (
	TrendStrongUp   Trend = "+++"
	TrendUp         Trend = "++"
	TrendMildUp     Trend = "+"
	TrendFlat       Trend = ""
	TrendMildDown   Trend = "-"
	TrendDown       Trend = "--"
	TrendStrongDown Trend = "---"
)

// TrendValue maps a trend symbol to its integer score in [-3, 3].
// Unknown symbols score 0.
func TrendValue(t Trend) int {
	switch t {
	case TrendStrongUp:
		return 3
	case TrendUp:
		return 2
	case TrendMildUp:
		return 1
	case TrendMildDown:
		return -1
	case TrendDown:
		return -2
	case TrendStrongDown:
		return -3
	default:
		return 0
	}
}

// TrendFromNumeric converts an averaged numeric trend back to the nearest
// symbol. Values inside (-0.5, 0.5) are flat.
func TrendFromNumeric(v float64) Trend {
	switch {
	case v >= 2.5:
		return TrendStrongUp
	case v >= 1.5:
		return TrendUp
	case v >= 0.5:
		return TrendMildUp
	case v <= -2.5:
		return TrendStrongDown
	case v <= -1.5:
		return TrendDown
	case v <= -0.5:
		return TrendMildDown
	default:
		return TrendFlat
	}
}
