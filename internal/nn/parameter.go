package nn

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Parameter represents a named, mutable tensor of a neural network module.
//
// The name is the parameter's key within its owning module's state dict
// (e.g., "bias" or "parametrizations.weight.original"); containers add
// their own prefixes.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string            // State-dict key relative to the owning module
	tensor *tensor.Tensor[B] // The parameter tensor
}

// NewParameter creates a new parameter.
//
// Parameters:
//   - name: State-dict key relative to the owning module
//   - t: The initialized parameter tensor
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[B] {
	return p.tensor
}

// Load copies raw into the parameter in place. Shapes must match exactly.
func (p *Parameter[B]) Load(raw *tensor.RawTensor) error {
	if !raw.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("parameter %q: shape mismatch: checkpoint %v, module %v",
			p.name, raw.Shape(), p.tensor.Shape())
	}
	copy(p.tensor.Data(), raw.Data())
	return nil
}

func (p *Parameter[B]) rename(name string) {
	p.name = name
}
