package gmm

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const lloydIterations = 10

// kmeans returns a cluster label per row: k-means++ seeding followed by a
// bounded number of Lloyd iterations.
func kmeans(rows [][]float64, k int, rng *rand.Rand) []int {
	centers := seed(rows, k, rng)
	labels := make([]int, len(rows))
	counts := make([]int, k)

	for it := 0; it < lloydIterations; it++ {
		changed := false
		for i, x := range rows {
			if c := nearest(x, centers); c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if it > 0 && !changed {
			break
		}

		clear(counts)
		sums := newMatrix(k, len(rows[0]))
		for i, x := range rows {
			floats.Add(sums[labels[i]], x)
			counts[labels[i]]++
		}
		for j := range centers {
			// An emptied cluster keeps its previous center.
			if counts[j] > 0 {
				floats.ScaleTo(centers[j], 1/float64(counts[j]), sums[j])
			}
		}
	}
	return labels
}

// seed picks k initial centers with D² weighting.
func seed(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), rows[rng.IntN(n)]...))

	dist := make([]float64, n)
	for i, x := range rows {
		dist[i] = sqDist(x, centers[0])
	}
	for len(centers) < k {
		total := floats.Sum(dist)
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, v := range dist {
				acc += v
				if acc >= target {
					next = i
					break
				}
			}
		}
		c := append([]float64(nil), rows[next]...)
		centers = append(centers, c)
		for i, x := range rows {
			dist[i] = math.Min(dist[i], sqDist(x, c))
		}
	}
	return centers
}

func nearest(x []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for j, c := range centers {
		if d := sqDist(x, c); d < bestD {
			best, bestD = j, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
