// Package nn implements the neural network building blocks of the restoration network.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named, mutable tensors addressed by state-dict keys
//   - Conv2D with optional Lipschitz weight parametrization (LipNorm)
//   - LayerNorm2D, SimpleGate, Dropout, CircularPad, PixelShuffle
//   - Global and local average pooling
//   - Sequential container (empty, it passes input through)
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
// Modules are forward-only: gradients are not tracked.
package nn

import (
	"fmt"
	"strings"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//   - StateDict / LoadStateDict: Export and import parameters by name
//
// Modules can be composed to build complex architectures:
//
//	block := nn.NewSequential[B](
//	    conv1,
//	    nn.NewSimpleGate[B](),
//	    conv2,
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules and parametrizations.
	Parameters() []*Parameter[B]

	// StateDict returns the module's parameters keyed by dotted name.
	// The returned tensors share memory with the parameters.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from stateDict into the module's parameters.
	// Every parameter must be present with a matching shape.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules whose behavior differs between
// training and evaluation (Dropout and the containers holding it).
type Trainable interface {
	SetTraining(training bool)
}

// stateDictOf builds a state dict from parameters named by their own keys.
func stateDictOf[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}

// loadParameters copies each parameter's entry of stateDict into it.
func loadParameters[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	for _, p := range params {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing parameter %q", p.Name())
		}
		if err := p.Load(raw); err != nil {
			return err
		}
	}
	return nil
}

// WithPrefix returns a copy of stateDict with prefix+"." prepended to every key.
func WithPrefix(prefix string, stateDict map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(stateDict))
	for k, v := range stateDict {
		out[prefix+"."+k] = v
	}
	return out
}

// SubDict returns the entries of stateDict under prefix+".", with the prefix removed.
func SubDict(prefix string, stateDict map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	p := prefix + "."
	out := make(map[string]*tensor.RawTensor)
	for k, v := range stateDict {
		if rest, ok := strings.CutPrefix(k, p); ok {
			out[rest] = v
		}
	}
	return out
}

// Merge copies every entry of src into dst.
func Merge(dst, src map[string]*tensor.RawTensor) {
	for k, v := range src {
		dst[k] = v
	}
}

// NumParams counts the scalar elements of all parameters.
func NumParams[B tensor.Backend](m Module[B]) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().NumElements()
	}
	return n
}

// stateless provides the parameter methods of modules that own no tensors.
type stateless[B tensor.Backend] struct{}

// Parameters returns nil.
func (stateless[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (stateless[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (stateless[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
