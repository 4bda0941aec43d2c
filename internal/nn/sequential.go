package nn

import (
	"fmt"
	"strconv"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Sequential feeds each module's output into the next, like torch.nn.Sequential.
// Children are addressed by index in the state dict ("0.beta", "1.conv1.bias").
// An empty Sequential is the identity.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

func (s *Sequential[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	for _, m := range s.modules {
		x = m.Forward(x)
	}
	return x
}

// Parameters concatenates the children's parameters in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Add appends a module.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the child at index. It panics when index is out of range.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic(fmt.Sprintf("sequential: index %d out of range [0, %d)", index, len(s.modules)))
	}
	return s.modules[index]
}

// SetTraining propagates the mode to every module that has one.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, module := range s.modules {
		if t, ok := module.(Trainable); ok {
			t.SetTraining(training)
		}
	}
}

func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for i, m := range s.modules {
		Merge(sd, WithPrefix(strconv.Itoa(i), m.StateDict()))
	}
	return sd
}

func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, m := range s.modules {
		if err := m.LoadStateDict(SubDict(strconv.Itoa(i), stateDict)); err != nil {
			return fmt.Errorf("%d: %w", i, err)
		}
	}
	return nil
}
