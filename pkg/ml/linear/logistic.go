// Package linear fits a binary logistic regression with batch gradient
// descent. Features are expected to be standardized by the caller.
package linear

import (
	"errors"
	"math"
)

type Options struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Metrics struct {
	Loss     float64
	Accuracy float64
}

func TrainLogistic(samples [][]float64, labels []float64, opts Options) (Weights, Metrics, error) {
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.1
	}

	n := len(samples)
	if n == 0 {
		return Weights{}, Metrics{}, errors.New("no training samples")
	}
	if len(labels) != n {
		return Weights{}, Metrics{}, errors.New("samples and labels differ in length")
	}
	featureCount := len(samples[0])
	weights := make([]float64, featureCount)
	var bias float64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for i, sample := range samples {
			residual := sigmoid(dot(weights, sample)+bias) - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += residual * sample[j]
			}
			biasGrad += residual
		}
		for j := 0; j < featureCount; j++ {
			weights[j] -= opts.LearningRate * (grad[j]/float64(n) + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	w := Weights{Bias: bias, Coefficients: weights}
	return w, Evaluate(w, samples, labels), nil
}

// Predict returns the probability of the positive class.
func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

// PredictProba returns [P(0), P(1)].
func (w Weights) PredictProba(sample []float64) []float64 {
	p := Predict(w, sample)
	return []float64{1 - p, p}
}

func (w Weights) Validate(width int) error {
	if len(w.Coefficients) != width {
		return errors.New("coefficient count does not match preprocessor width")
	}
	return nil
}

func Evaluate(w Weights, samples [][]float64, labels []float64) Metrics {
	if len(samples) == 0 {
		return Metrics{}
	}
	var loss float64
	var correct int
	for i, sample := range samples {
		prediction := Predict(w, sample)
		loss += -labels[i]*math.Log(prediction+1e-9) - (1-labels[i])*math.Log(1-prediction+1e-9)
		if (prediction >= 0.5 && labels[i] == 1) || (prediction < 0.5 && labels[i] == 0) {
			correct++
		}
	}
	return Metrics{
		Loss:     loss / float64(len(samples)),
		Accuracy: float64(correct) / float64(len(samples)),
	}
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights) && i < len(sample); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
