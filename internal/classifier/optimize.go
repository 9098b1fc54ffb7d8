package classifier

import (
	"math"
	"math/rand/v2"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8

	// probEpsilon keeps the log terms of the loss finite.
	probEpsilon = 1e-7
)

// gradients mirrors a Network's parameter shapes.
type gradients struct {
	weights [][][]float64
	biases  [][]float64
}

func newGradients(n *Network) *gradients {
	g := &gradients{
		weights: make([][][]float64, len(n.Layers)),
		biases:  make([][]float64, len(n.Layers)),
	}
	for l, layer := range n.Layers {
		g.weights[l] = make([][]float64, len(layer.Weights))
		for i, row := range layer.Weights {
			g.weights[l][i] = make([]float64, len(row))
		}
		g.biases[l] = make([]float64, len(layer.Biases))
	}
	return g
}

func (g *gradients) zero() {
	for l := range g.weights {
		for i := range g.weights[l] {
			clear(g.weights[l][i])
		}
		clear(g.biases[l])
	}
}

// accumulate runs one forward/backward pass for x with label y, adding the
// gradient of the binary cross-entropy loss to g. Hidden units are dropped
// with probability dropout (inverted dropout). It returns the loss.
func (g *gradients) accumulate(n *Network, x []float64, y float64, dropout float64, rng *rand.Rand) float64 {
	last := len(n.Layers) - 1
	acts := make([][]float64, len(n.Layers)+1)
	scales := make([][]float64, len(n.Layers))
	acts[0] = x

	for l, layer := range n.Layers {
		z := layer.forward(acts[l])
		if l < last {
			relu(z)
			scales[l] = make([]float64, len(z))
			for i := range z {
				s := 1.0
				if dropout > 0 {
					if rng.Float64() < dropout {
						s = 0
					} else {
						s = 1 / (1 - dropout)
					}
				}
				scales[l][i] = s
				z[i] *= s
			}
		}
		acts[l+1] = z
	}

	p := sigmoid(acts[last+1][0])
	pc := math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
	loss := -(y*math.Log(pc) + (1-y)*math.Log(1-pc))

	// Sigmoid with cross-entropy: dL/dz = p - y.
	delta := []float64{p - y}
	for l := last; l >= 0; l-- {
		layer := n.Layers[l]
		in := acts[l]
		for i, d := range delta {
			row := g.weights[l][i]
			for j, a := range in {
				row[j] += d * a
			}
			g.biases[l][i] += d
		}
		if l == 0 {
			break
		}
		prev := make([]float64, len(in))
		for j := range prev {
			if in[j] <= 0 {
				continue
			}
			sum := 0.0
			for i, d := range delta {
				sum += layer.Weights[i][j] * d
			}
			prev[j] = sum * scales[l-1][j]
		}
		delta = prev
	}

	return loss
}

// adam is the Adam optimizer state for one network.
type adam struct {
	lr   float64
	step int
	m, v *gradients
}

func newAdam(n *Network, lr float64) *adam {
	return &adam{lr: lr, m: newGradients(n), v: newGradients(n)}
}

// apply updates n with the averaged gradient g over batch examples.
func (o *adam) apply(n *Network, g *gradients, batch int) {
	o.step++
	scale := 1 / float64(batch)
	c1 := 1 - math.Pow(adamBeta1, float64(o.step))
	c2 := 1 - math.Pow(adamBeta2, float64(o.step))

	update := func(param *float64, grad float64, m, v *float64) {
		grad *= scale
		*m = adamBeta1*(*m) + (1-adamBeta1)*grad
		*v = adamBeta2*(*v) + (1-adamBeta2)*grad*grad
		*param -= o.lr * (*m / c1) / (math.Sqrt(*v/c2) + adamEpsilon)
	}

	for l := range n.Layers {
		layer := n.Layers[l]
		for i := range layer.Weights {
			for j := range layer.Weights[i] {
				update(&layer.Weights[i][j], g.weights[l][i][j], &o.m.weights[l][i][j], &o.v.weights[l][i][j])
			}
			update(&layer.Biases[i], g.biases[l][i], &o.m.biases[l][i], &o.v.biases[l][i])
		}
	}
}
