package classifier

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/features"
)

// DefaultLayerSizes is the network shape: the feature vector, two ReLU hidden
// layers and a single sigmoid output.
var DefaultLayerSizes = []int{features.VectorSize, 32, 16, 1}

// Layer is a dense layer. Weights is indexed [output][input].
type Layer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// In returns the layer's input width.
func (l Layer) In() int {
	if len(l.Weights) == 0 {
		return 0
	}
	return len(l.Weights[0])
}

// Out returns the layer's output width.
func (l Layer) Out() int {
	return len(l.Biases)
}

// Network is a small feed-forward binary classifier.
type Network struct {
	Layers []Layer `json:"layers"`
}

// NewNetwork creates a network with He-initialized weights for the given
// layer sizes.
func NewNetwork(sizes []int, rng *rand.Rand) *Network {
	n := &Network{Layers: make([]Layer, len(sizes)-1)}
	for l := range n.Layers {
		in, out := sizes[l], sizes[l+1]
		std := math.Sqrt(2 / float64(in))
		layer := Layer{
			Weights: make([][]float64, out),
			Biases:  make([]float64, out),
		}
		for i := range layer.Weights {
			layer.Weights[i] = make([]float64, in)
			for j := range layer.Weights[i] {
				layer.Weights[i][j] = rng.NormFloat64() * std
			}
		}
		n.Layers[l] = layer
	}
	return n
}

// Predict returns the probability that x describes an intentional movement.
func (n *Network) Predict(x []float64) float64 {
	a := x
	for l, layer := range n.Layers {
		z := layer.forward(a)
		if l < len(n.Layers)-1 {
			relu(z)
		}
		a = z
	}
	return sigmoid(a[0])
}

// Valid reports whether the network has consistent shapes, the expected
// input and output widths, and finite parameters.
func (n *Network) Valid(inputs int) bool {
	if len(n.Layers) == 0 || n.Layers[0].In() != inputs || n.Layers[len(n.Layers)-1].Out() != 1 {
		return false
	}
	for l, layer := range n.Layers {
		if len(layer.Weights) != len(layer.Biases) || layer.In() == 0 {
			return false
		}
		if l > 0 && layer.In() != n.Layers[l-1].Out() {
			return false
		}
		for _, row := range layer.Weights {
			if len(row) != layer.In() || !finite(row) {
				return false
			}
		}
		if !finite(layer.Biases) {
			return false
		}
	}
	return true
}

func (l Layer) forward(a []float64) []float64 {
	z := make([]float64, len(l.Biases))
	for i, row := range l.Weights {
		z[i] = floats.Dot(row, a) + l.Biases[i]
	}
	return z
}

func relu(z []float64) {
	for i, v := range z {
		if v < 0 {
			z[i] = 0
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
