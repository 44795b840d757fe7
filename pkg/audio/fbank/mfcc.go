package fbank

import "math"

const amin = 1e-10

// PowerToDB converts a power matrix to decibels relative to its maximum,
// clipping the dynamic range to topDB (0 disables clipping).
func PowerToDB(power [][]float64, topDB float64) [][]float64 {
	out := make([][]float64, len(power))
	peak := math.Inf(-1)
	for t, row := range power {
		r := make([]float64, len(row))
		for i, v := range row {
			r[i] = 10 * math.Log10(math.Max(amin, v))
			peak = math.Max(peak, r[i])
		}
		out[t] = r
	}
	if topDB > 0 {
		floor := peak - topDB
		for _, row := range out {
			for i, v := range row {
				if v < floor {
					row[i] = floor
				}
			}
		}
	}
	return out
}

// LogMel returns the natural log of a mel matrix with a floor at amin.
func LogMel(mel [][]float64) [][]float64 {
	out := make([][]float64, len(mel))
	for t, row := range mel {
		r := make([]float64, len(row))
		for i, v := range row {
			r[i] = math.Log(math.Max(amin, v))
		}
		out[t] = r
	}
	return out
}

// DCT applies an orthonormal DCT-II to each row and keeps the first n
// coefficients.
func DCT(rows [][]float64, n int) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	m := len(rows[0])
	n = min(n, m)
	basis := dctBasis(n, m)
	out := make([][]float64, len(rows))
	for t, row := range rows {
		c := make([]float64, n)
		for k := range n {
			var sum float64
			for i, v := range row {
				sum += v * basis[k][i]
			}
			c[k] = sum
		}
		out[t] = c
	}
	return out
}

func dctBasis(n, m int) [][]float64 {
	basis := make([][]float64, n)
	for k := range n {
		scale := math.Sqrt(2.0 / float64(m))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(m))
		}
		b := make([]float64, m)
		for i := range m {
			b[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(m)))
		}
		basis[k] = b
	}
	return basis
}

// MFCC computes n cepstral coefficients per frame from a mel power matrix
// using the dB scale with an 80 dB floor.
func MFCC(mel [][]float64, n int) [][]float64 {
	return DCT(PowerToDB(mel, 80), n)
}

// ColumnMeans averages a [T][D] matrix over time. An empty matrix yields
// a zero vector of length dim.
func ColumnMeans(m [][]float64, dim int) []float64 {
	out := make([]float64, dim)
	if len(m) == 0 {
		return out
	}
	for _, row := range m {
		for i := 0; i < dim && i < len(row); i++ {
			out[i] += row[i]
		}
	}
	for i := range out {
		out[i] /= float64(len(m))
	}
	return out
}
