package report

import (
	"fmt"
	"time"
)

const (
	minGrowthPoints = 3
	hoursPerMonth   = 24.0 * 30.0
	// growingRate is the monthly rate above which a series counts as growing.
	growingRate = 3.0
)

// Point is one observation of a series, such as a namespace's waste in one run.
type Point struct {
	At    time.Time
	Value float64
}

// Growth is the linear trend of a series.
type Growth struct {
	// RatePerMonth is the fitted change per 30 days as a percentage of the mean.
	RatePerMonth float64
	// Confidence is the R² of the fit, between 0 and 1.
	Confidence float64
	Growing    bool
	Samples    int
}

// GrowthOf fits a least-squares line through points. Order does not matter.
func GrowthOf(points []Point) (Growth, error) {
	if len(points) < minGrowthPoints {
		return Growth{Samples: len(points)}, fmt.Errorf("insufficient data for trend analysis (need %d+ points, got %d)", minGrowthPoints, len(points))
	}

	start := points[0].At
	for _, p := range points[1:] {
		if p.At.Before(start) {
			start = p.At
		}
	}
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.At.Sub(start).Hours()
		y[i] = p.Value
	}

	slope, r2 := linearRegression(x, y)
	g := Growth{Confidence: r2, Samples: len(points)}
	if avg := mean(y); avg > 0 {
		g.RatePerMonth = slope * hoursPerMonth / avg * 100
	}
	g.Growing = g.RatePerMonth > growingRate
	return g, nil
}

// linearRegression returns the slope and the R² of y over x.
func linearRegression(x, y []float64) (slope, r2 float64) {
	meanX, meanY := mean(x), mean(y)

	var num, den float64
	for i := range x {
		num += (x[i] - meanX) * (y[i] - meanY)
		den += (x[i] - meanX) * (x[i] - meanX)
	}
	if den == 0 {
		return 0, 0
	}
	slope = num / den
	intercept := meanY - slope*meanX

	var ssTotal, ssRes float64
	for i := range x {
		predicted := slope*x[i] + intercept
		ssRes += (y[i] - predicted) * (y[i] - predicted)
		ssTotal += (y[i] - meanY) * (y[i] - meanY)
	}
	if ssTotal == 0 {
		return slope, 0
	}
	r2 = 1 - ssRes/ssTotal
	if r2 < 0 {
		r2 = 0
	}
	return slope, r2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
