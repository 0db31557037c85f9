package stage

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
	"github.com/sourcegraph/conc/iter"
	"gonum.org/v1/gonum/floats"
)

// reduceFunc rewrites one de-interleaved channel in place.
type reduceFunc func(lane []float64)

// processBatch runs reduce over every channel of an interleaved buffer.
// Channels touch disjoint indices of buf, so they are reduced concurrently.
func processBatch(buf []float64, channels int, reduce reduceFunc) {
	if len(buf) == 0 {
		return
	}
	lanes := make([][]float64, channels)
	iter.ForEachIdx(lanes, func(c int, lane *[]float64) {
		*lane = deinterleave(buf, channels, c)
		if len(*lane) == 0 {
			return
		}
		reduce(*lane)
		interleave(buf, channels, c, *lane)
	})
}

func deinterleave(buf []float64, channels, c int) []float64 {
	lane := make([]float64, 0, len(buf)/channels+1)
	for i := c; i < len(buf); i += channels {
		lane = append(lane, buf[i])
	}
	return lane
}

func interleave(buf []float64, channels, c int, lane []float64) {
	for j, i := 0, c; i < len(buf); i, j = i+channels, j+1 {
		buf[i] = lane[j]
	}
}

func broadcast(lane []float64, v float64) {
	for i := range lane {
		lane[i] = v
	}
}

// sumOfSquares squares the lane with the vectorized block kernel and sums
// the result.
func sumOfSquares(lane []float64) float64 {
	sq := make([]float64, len(lane))
	vecmath.MulBlock(sq, lane, lane)
	return floats.Sum(sq)
}

func moments(lane []float64) (mean, variance float64) {
	n := float64(len(lane))
	mean = floats.Sum(lane) / n
	variance = math.Max(0, sumOfSquares(lane)/n-mean*mean)
	return mean, variance
}

func batchMean(lane []float64) {
	broadcast(lane, floats.Sum(lane)/float64(len(lane)))
}

func batchRMS(lane []float64) {
	broadcast(lane, math.Sqrt(math.Max(0, sumOfSquares(lane)/float64(len(lane)))))
}

func batchMeanAbs(lane []float64) {
	broadcast(lane, floats.Norm(lane, 1)/float64(len(lane)))
}

func batchVariance(lane []float64) {
	_, variance := moments(lane)
	broadcast(lane, variance)
}

func batchZScore(epsilon float64) reduceFunc {
	return func(lane []float64) {
		mean, variance := moments(lane)
		stddev := math.Sqrt(variance)
		if stddev < epsilon {
			broadcast(lane, 0)
			return
		}
		floats.AddConst(-mean, lane)
		floats.Scale(1/stddev, lane)
	}
}
