package pagespeed

import "fmt"

// Rating constants returned by Rate. They follow the Lighthouse score bands.
const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs-improvement"
	RatingPoor             = "poor"
)

// Thresholds that map a score to a rating.
const (
	ThresholdGood             = 90.0
	ThresholdNeedsImprovement = 50.0
)

// Rate maps a 0–100 score to a named rating.
func Rate(score float64) string {
	switch {
	case score >= ThresholdGood:
		return RatingGood
	case score >= ThresholdNeedsImprovement:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}

// normalize converts the API's 0–1 score into a 0–100 percentage. The
// multiplication is exact on purpose: 0.87 becomes 87, not a rounded value.
func normalize(raw float64) (float64, error) {
	if raw < 0 || raw > 1 {
		return 0, fmt.Errorf("score %v outside [0,1]", raw)
	}
	return raw * 100, nil
}
