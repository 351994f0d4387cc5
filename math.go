package kriging

import (
	"math"
)

func exp(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Exp(x)
}

func pow2(x float64) float64 {
	return x * x
}

func pow3(x float64) float64 {
	return x * x * x
}

func distance(x0, y0, x1, y1 float64) float64 {
	return math.Sqrt(pow2(x0-x1) + pow2(y0-y1))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
