package nafnet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zhongruiw/NAFNet/internal/nn"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// LayerSummary describes one top-level stage of a forward pass.
type LayerSummary struct {
	Name        string
	Type        string
	OutputShape tensor.Shape
	Params      int
}

// Summary is a per-stage report of a single forward pass, in the layout of
// Keras/torchsummary model summaries.
type Summary struct {
	InputShape  tensor.Shape
	Layers      []LayerSummary
	TotalParams int
}

// Summarize runs one forward pass on a uniform random [1, img_channel, height, width]
// input and records every top-level stage. Any installed observer is restored afterwards.
func (n *NAFNet[B]) Summarize(height, width int) Summary {
	modules := make(map[string]nn.Module[B])
	for _, c := range n.children() {
		modules[c.name] = c.module
	}

	s := Summary{
		InputShape:  tensor.Shape{1, n.cfg.ImgChannel, height, width},
		TotalParams: n.NumParams(),
	}

	prev := n.observer
	defer func() { n.observer = prev }()

	n.observer = func(name string, out *tensor.Tensor[B]) {
		layer := LayerSummary{Name: name, Type: "NAFNet", OutputShape: out.Shape().Clone()}
		if m, ok := modules[name]; ok {
			layer.Type = moduleType[B](m)
			layer.Params = nn.NumParams(m)
		}
		s.Layers = append(s.Layers, layer)
		if prev != nil {
			prev(name, out)
		}
	}

	n.Forward(tensor.Rand(s.InputShape, n.rng, n.backend))
	return s
}

func moduleType[B tensor.Backend](m nn.Module[B]) string {
	switch m.(type) {
	case *nn.Conv2D[B]:
		return "Conv2D"
	case *nn.Sequential[B]:
		return "Sequential"
	case *NAFBlock[B]:
		return "NAFBlock"
	default:
		return "Module"
	}
}

const mib = 1024 * 1024

// ForwardSizeMB is the memory held by the recorded stage outputs, in MiB.
func (s Summary) ForwardSizeMB() float64 {
	total := 0
	for _, l := range s.Layers {
		total += l.OutputShape.NumElements()
	}
	return float64(total*4) / mib
}

// ParamsSizeMB is the memory held by the parameters, in MiB.
func (s Summary) ParamsSizeMB() float64 {
	return float64(s.TotalParams*4) / mib
}

// InputSizeMB is the memory held by the input, in MiB.
func (s Summary) InputSizeMB() float64 {
	return float64(s.InputShape.NumElements()*4) / mib
}

// WriteTo writes the summary table to w.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	rule := strings.Repeat("-", 72) + "\n"
	double := strings.Repeat("=", 72) + "\n"

	b.WriteString(rule)
	fmt.Fprintf(&b, "%28s  %27s %13s\n", "Layer (type)", "Output Shape", "Param #")
	b.WriteString(double)
	for _, l := range s.Layers {
		fmt.Fprintf(&b, "%28s  %27s %13s\n", fmt.Sprintf("%s (%s)", l.Name, l.Type), batchless(l.OutputShape), groupDigits(l.Params))
	}
	b.WriteString(double)
	fmt.Fprintf(&b, "Total params: %s\n", groupDigits(s.TotalParams))
	fmt.Fprintf(&b, "Trainable params: %s\n", groupDigits(s.TotalParams))
	fmt.Fprintf(&b, "Non-trainable params: 0\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "Input size (MB): %.2f\n", s.InputSizeMB())
	fmt.Fprintf(&b, "Forward pass size (MB): %.2f\n", s.ForwardSizeMB())
	fmt.Fprintf(&b, "Params size (MB): %.2f\n", s.ParamsSizeMB())
	fmt.Fprintf(&b, "Estimated Total Size (MB): %.2f\n", s.InputSizeMB()+s.ForwardSizeMB()+s.ParamsSizeMB())
	b.WriteString(rule)

	written, err := io.WriteString(w, b.String())
	return int64(written), err
}

func (s Summary) String() string {
	var b strings.Builder
	_, _ = s.WriteTo(&b)
	return b.String()
}

// batchless formats a shape with the batch dimension shown as -1.
func batchless(shape tensor.Shape) string {
	dims := []string{"-1"}
	for _, d := range shape[1:] {
		dims = append(dims, strconv.Itoa(d))
	}
	return "[" + strings.Join(dims, ", ") + "]"
}

// groupDigits formats n with comma thousands separators.
func groupDigits(n int) string {
	if n < 0 {
		return "-" + groupDigits(-n)
	}
	s := strconv.Itoa(n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
