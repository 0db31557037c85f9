package stage

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/policy"
)

const (
	TypeMovingAverage     = "movingAverage"
	TypeRMS               = "rms"
	TypeVariance          = "variance"
	TypeMeanAbsoluteValue = "meanAbsoluteValue"
	TypeZScoreNormalize   = "zScoreNormalize"
)

// DefaultEpsilon is the zScoreNormalize deviation floor when none is configured.
const DefaultEpsilon = 1e-6

var (
	errMissingSum   = errors.New("missing runningSum")
	errMissingSumSq = errors.New("missing runningSumOfSquares")
)

func encodeSum(s float64, cs *channelState) { cs.RunningSum = &s }

func decodeSum(cs channelState) (float64, error) {
	if cs.RunningSum == nil {
		return 0, errMissingSum
	}
	return *cs.RunningSum, nil
}

func encodeSumSq(s float64, cs *channelState) { cs.RunningSumOfSquares = &s }

func decodeSumSq(cs channelState) (float64, error) {
	if cs.RunningSumOfSquares == nil {
		return 0, errMissingSumSq
	}
	return *cs.RunningSumOfSquares, nil
}

func encodeMoments(m policy.Moments, cs *channelState) {
	cs.RunningSum = &m.Sum
	cs.RunningSumOfSquares = &m.SumSq
}

func decodeMoments(cs channelState) (policy.Moments, error) {
	sum, err := decodeSum(cs)
	if err != nil {
		return policy.Moments{}, err
	}
	sumSq, err := decodeSumSq(cs)
	if err != nil {
		return policy.Moments{}, err
	}
	return policy.Moments{Sum: sum, SumSq: sumSq}, nil
}

// NewMovingAverage returns a mean stage.
func NewMovingAverage(mode Mode, windowSize int, logger *zap.Logger) (*Windowed[float64, *policy.Mean], error) {
	return newWindowed(statistic[float64, *policy.Mean]{
		typeName:  TypeMovingAverage,
		newPolicy: func() *policy.Mean { return &policy.Mean{} },
		batch:     batchMean,
		encode:    encodeSum,
		decode:    decodeSum,
	}, mode, windowSize, logger)
}

// NewRMS returns a root-mean-square stage.
func NewRMS(mode Mode, windowSize int, logger *zap.Logger) (*Windowed[float64, *policy.RMS], error) {
	return newWindowed(statistic[float64, *policy.RMS]{
		typeName:  TypeRMS,
		newPolicy: func() *policy.RMS { return &policy.RMS{} },
		batch:     batchRMS,
		encode:    encodeSumSq,
		decode:    decodeSumSq,
	}, mode, windowSize, logger)
}

// NewMeanAbsoluteValue returns a mean-absolute-value stage. Its running sum
// is a sum of magnitudes.
func NewMeanAbsoluteValue(mode Mode, windowSize int, logger *zap.Logger) (*Windowed[float64, *policy.MeanAbs], error) {
	return newWindowed(statistic[float64, *policy.MeanAbs]{
		typeName:  TypeMeanAbsoluteValue,
		newPolicy: func() *policy.MeanAbs { return &policy.MeanAbs{} },
		batch:     batchMeanAbs,
		encode:    encodeSum,
		decode:    decodeSum,
	}, mode, windowSize, logger)
}

// NewVariance returns a population variance stage.
func NewVariance(mode Mode, windowSize int, logger *zap.Logger) (*Windowed[policy.Moments, *policy.Variance], error) {
	return newWindowed(statistic[policy.Moments, *policy.Variance]{
		typeName:  TypeVariance,
		newPolicy: func() *policy.Variance { return &policy.Variance{} },
		batch:     batchVariance,
		encode:    encodeMoments,
		decode:    decodeMoments,
	}, mode, windowSize, logger)
}

// NewZScoreNormalize returns a z-score stage. In moving mode each sample is
// normalized against the window that includes it.
func NewZScoreNormalize(mode Mode, windowSize int, epsilon float64, logger *zap.Logger) (*Windowed[policy.Moments, *policy.ZScore], error) {
	if !(epsilon > 0) {
		return nil, fmt.Errorf("%w: %s: epsilon must be greater than 0, got %g", ErrInvalidConfig, TypeZScoreNormalize, epsilon)
	}
	s, err := newWindowed(statistic[policy.Moments, *policy.ZScore]{
		typeName:  TypeZScoreNormalize,
		newPolicy: func() *policy.ZScore { return policy.NewZScore(epsilon) },
		batch:     batchZScore(epsilon),
		encode:    encodeMoments,
		decode:    decodeMoments,
	}, mode, windowSize, logger)
	if err != nil {
		return nil, err
	}
	s.epsilon = &epsilon
	return s, nil
}
