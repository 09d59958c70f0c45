package anyfsa

import "math"

// addLogs adds two numbers in the log domain.
func addLogs(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	} else if math.IsInf(b, -1) {
		return a
	}
	normalizer := math.Max(a, b)
	exp1 := math.Exp(a - normalizer)
	exp2 := math.Exp(b - normalizer)
	return math.Log(exp1+exp2) + normalizer
}

// logSumExp adds a list of numbers in the log domain.
func logSumExp(v []float64) float64 {
	max := math.Inf(-1)
	for _, x := range v {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, 0) || math.IsNaN(max) {
		return max
	}
	var sum float64
	for _, x := range v {
		sum += math.Exp(x - max)
	}
	return math.Log(sum) + max
}

func negInfSlice(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = math.Inf(-1)
	}
	return res
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
