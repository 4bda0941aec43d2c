package nn

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Dropout zeroes elements with probability rate during training and scales
// the survivors by 1/(1-rate). In evaluation mode, and always when rate is 0,
// it returns its input unchanged.
//
// Modules start in evaluation mode; call SetTraining(true) to enable dropping.
type Dropout[B tensor.Backend] struct {
	stateless[B]

	rate     float64
	training bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDropout creates a Dropout layer. rate must lie in [0, 1).
func NewDropout[B tensor.Backend](rate float64, rng *rand.Rand) (*Dropout[B], error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("dropout: rate %v outside [0, 1)", rate)
	}
	return &Dropout[B]{rate: rate, rng: rng}, nil
}

// Rate returns the drop probability.
func (d *Dropout[B]) Rate() float64 {
	return d.rate
}

// SetTraining switches between training (dropping) and evaluation (identity).
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Forward applies the dropout mask in training mode.
func (d *Dropout[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	if !d.training || d.rate == 0 {
		return x
	}

	mask := tensor.Zeros(x.Shape(), x.Backend())
	keep := float32(1 / (1 - d.rate))

	d.mu.Lock()
	for i := range mask.Data() {
		if d.rng.Float64() >= d.rate {
			mask.Data()[i] = keep
		}
	}
	d.mu.Unlock()

	return x.Mul(mask)
}

func (d *Dropout[B]) String() string {
	if d.rate == 0 {
		return "Identity()"
	}
	return fmt.Sprintf("Dropout(p=%g)", d.rate)
}
