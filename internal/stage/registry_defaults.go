package stage

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultRegistry returns a Registry pre-populated with every built-in stage.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(TypeMovingAverage, func(p Params, logger *zap.Logger) (Stage, error) {
		mode, windowSize, err := p.windowed(TypeMovingAverage)
		if err != nil {
			return nil, err
		}
		return NewMovingAverage(mode, windowSize, logger)
	})
	r.MustRegister(TypeRMS, func(p Params, logger *zap.Logger) (Stage, error) {
		mode, windowSize, err := p.windowed(TypeRMS)
		if err != nil {
			return nil, err
		}
		return NewRMS(mode, windowSize, logger)
	})
	r.MustRegister(TypeVariance, func(p Params, logger *zap.Logger) (Stage, error) {
		mode, windowSize, err := p.windowed(TypeVariance)
		if err != nil {
			return nil, err
		}
		return NewVariance(mode, windowSize, logger)
	})
	r.MustRegister(TypeMeanAbsoluteValue, func(p Params, logger *zap.Logger) (Stage, error) {
		mode, windowSize, err := p.windowed(TypeMeanAbsoluteValue)
		if err != nil {
			return nil, err
		}
		return NewMeanAbsoluteValue(mode, windowSize, logger)
	})
	r.MustRegister(TypeZScoreNormalize, func(p Params, logger *zap.Logger) (Stage, error) {
		mode, windowSize, err := p.windowed(TypeZScoreNormalize)
		if err != nil {
			return nil, err
		}
		epsilon, err := p.finite(TypeZScoreNormalize, "epsilon", DefaultEpsilon)
		if err != nil {
			return nil, err
		}
		return NewZScoreNormalize(mode, windowSize, epsilon, logger)
	})
	r.MustRegister(TypeRectify, func(p Params, _ *zap.Logger) (Stage, error) {
		mode := RectifyFull
		if p.Has("mode") {
			s, ok := p.String("mode")
			if !ok {
				return nil, fmt.Errorf("%w: %s: 'mode' must be a string", ErrInvalidConfig, TypeRectify)
			}
			mode = RectifyMode(s)
		}
		return NewRectify(mode)
	})
	r.MustRegister(TypeWillisonAmplitude, func(p Params, logger *zap.Logger) (Stage, error) {
		windowSize, threshold, err := p.thresholded(TypeWillisonAmplitude)
		if err != nil {
			return nil, err
		}
		return NewWillisonAmplitude(windowSize, threshold, logger)
	})
	r.MustRegister(TypeSlopeSignChange, func(p Params, logger *zap.Logger) (Stage, error) {
		windowSize, threshold, err := p.thresholded(TypeSlopeSignChange)
		if err != nil {
			return nil, err
		}
		return NewSlopeSignChange(windowSize, threshold, logger)
	})
	r.MustRegister(TypeWaveformLength, func(p Params, logger *zap.Logger) (Stage, error) {
		windowSize, err := p.windowSize(TypeWaveformLength, true)
		if err != nil {
			return nil, err
		}
		return NewWaveformLength(windowSize, logger)
	})

	return r
}
