package fbank

import "math"

// CMVN applies cepstral mean and variance normalization in place: every
// column is shifted to zero mean and scaled to unit variance across frames.
// Constant columns are only mean-shifted.
func CMVN(features [][]float64) {
	if len(features) == 0 {
		return
	}
	dims := len(features[0])
	n := float64(len(features))

	for d := range dims {
		var sum float64
		for _, f := range features {
			sum += f[d]
		}
		mean := sum / n

		var varSum float64
		for _, f := range features {
			diff := f[d] - mean
			varSum += diff * diff
		}
		std := math.Sqrt(varSum / n)
		if std < 1e-10 {
			std = 1
		}

		for _, f := range features {
			f[d] = (f[d] - mean) / std
		}
	}
}

// Flatten converts [T][D] to a row-major float32 slice for model input.
func Flatten(features [][]float64) []float32 {
	if len(features) == 0 {
		return nil
	}
	cols := len(features[0])
	flat := make([]float32, len(features)*cols)
	for t, row := range features {
		for i, v := range row {
			flat[t*cols+i] = float32(v)
		}
	}
	return flat
}
