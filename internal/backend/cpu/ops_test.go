package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

func rawFrom(t *testing.T, shape tensor.Shape, data ...float32) *tensor.RawTensor {
	t.Helper()
	raw := tensor.MustRaw(shape, tensor.CPU)
	require.Len(t, data, raw.NumElements())
	copy(raw.Data(), data)
	return raw
}

func arange(shape tensor.Shape) *tensor.RawTensor {
	raw := tensor.MustRaw(shape, tensor.CPU)
	for i := range raw.Data() {
		raw.Data()[i] = float32(i)
	}
	return raw
}

func TestAdd_Broadcast(t *testing.T) {
	backend := New()

	x := arange(tensor.Shape{2, 3, 2, 2})
	bias := rawFrom(t, tensor.Shape{1, 3, 1, 1}, 100, 200, 300)

	out := backend.Add(x, bias)
	require.Equal(t, tensor.Shape{2, 3, 2, 2}, out.Shape())
	for i, v := range out.Data() {
		c := (i / 4) % 3
		assert.Equal(t, float32(i)+float32(100*(c+1)), v, "index %d", i)
	}

	// Per-sample channel vector: [N, C, 1, 1].
	scale := rawFrom(t, tensor.Shape{2, 3, 1, 1}, 1, 2, 3, 4, 5, 6)
	out = backend.Mul(x, scale)
	for i, v := range out.Data() {
		assert.Equal(t, float32(i)*float32(i/4+1), v, "index %d", i)
	}

	// Generic path: the broadcast operand comes first.
	out = backend.Add(bias, x)
	assert.Equal(t, float32(100), out.Data()[0])
	assert.Equal(t, float32(323), out.Data()[23])
}

func TestAdd_Incompatible(t *testing.T) {
	backend := New()
	require.Panics(t, func() {
		backend.Add(tensor.MustRaw(tensor.Shape{1, 3, 2, 2}, tensor.CPU), tensor.MustRaw(tensor.Shape{1, 4, 2, 2}, tensor.CPU))
	})
}

func TestMulScalar(t *testing.T) {
	backend := New()
	out := backend.MulScalar(rawFrom(t, tensor.Shape{3}, 1, -2, 0.5), 2)
	assert.Equal(t, []float32{2, -4, 1}, out.Data())
}

func TestPadCircular(t *testing.T) {
	backend := New()

	// 0 1 2
	// 3 4 5
	x := arange(tensor.Shape{1, 1, 2, 3})

	out := backend.PadCircular(x, 1, 1, 1, 1)
	require.Equal(t, tensor.Shape{1, 1, 4, 5}, out.Shape())
	assert.Equal(t, []float32{
		5, 3, 4, 5, 3,
		2, 0, 1, 2, 0,
		5, 3, 4, 5, 3,
		2, 0, 1, 2, 0,
	}, out.Data())

	// Right/bottom only, larger than the input itself.
	out = backend.PadCircular(x, 0, 3, 0, 4)
	require.Equal(t, tensor.Shape{1, 1, 5, 7}, out.Shape())
	assert.Equal(t, []float32{0, 1, 2, 0, 1, 2, 0}, out.Data()[:7])
	assert.Equal(t, []float32{0, 1, 2, 0, 1, 2, 0}, out.Data()[28:35])

	require.Panics(t, func() { backend.PadCircular(x, -1, 0, 0, 0) })
}

func TestPadCircular_CropRoundTrip(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(3))
	x := randRaw(rng, tensor.Shape{2, 3, 5, 7})

	padded := backend.PadCircular(x, 0, 11, 0, 9)
	back := backend.Crop(padded, 5, 7)

	require.Equal(t, x.Shape(), back.Shape())
	assert.Equal(t, x.Data(), back.Data())
}

func TestPadCircular_AllSides(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(4))
	x := randRaw(rng, tensor.Shape{2, 3, 4, 6})

	padded := backend.PadCircular(x, 2, 1, 1, 3)
	require.Equal(t, tensor.Shape{2, 3, 7, 10}, padded.Shape())

	var inner []float32
	for plane := range 6 {
		for i := range 4 {
			start := plane*70 + (2+i)*10 + 1
			inner = append(inner, padded.Data()[start:start+6]...)
		}
	}
	assert.Equal(t, x.Data(), inner)
}

func TestCrop_Invalid(t *testing.T) {
	backend := New()
	x := tensor.MustRaw(tensor.Shape{1, 1, 2, 2}, tensor.CPU)
	require.Panics(t, func() { backend.Crop(x, 3, 2) })
	require.Panics(t, func() { backend.Crop(x, 0, 2) })
}

func TestPixelShuffle(t *testing.T) {
	backend := New()

	// Four channels of a single pixel become one 2x2 map in row-major order.
	x := rawFrom(t, tensor.Shape{1, 4, 1, 1}, 1, 2, 3, 4)
	out := backend.PixelShuffle(x, 2)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, out.Data())

	// Full index check against the defining formula.
	x = arange(tensor.Shape{2, 8, 3, 2})
	out = backend.PixelShuffle(x, 2)
	require.Equal(t, tensor.Shape{2, 2, 6, 4}, out.Shape())
	for n := 0; n < 2; n++ {
		for c := 0; c < 2; c++ {
			for h := 0; h < 3; h++ {
				for w := 0; w < 2; w++ {
					for i := 0; i < 2; i++ {
						for j := 0; j < 2; j++ {
							want := x.Data()[((n*8+c*4+i*2+j)*3+h)*2+w]
							got := out.Data()[((n*2+c)*6+h*2+i)*4+w*2+j]
							require.Equal(t, want, got)
						}
					}
				}
			}
		}
	}

	require.Panics(t, func() { backend.PixelShuffle(arange(tensor.Shape{1, 6, 2, 2}), 2) })
}

func TestAdaptiveAvgPool2D(t *testing.T) {
	backend := New()
	x := arange(tensor.Shape{1, 2, 2, 2})

	out := backend.AdaptiveAvgPool2D(x)
	require.Equal(t, tensor.Shape{1, 2, 1, 1}, out.Shape())
	assert.InDeltaSlice(t, []float32{1.5, 5.5}, out.Data(), 1e-6)
}

func TestBoxAvgPool2D(t *testing.T) {
	backend := New()

	t.Run("kernel covers map", func(t *testing.T) {
		x := arange(tensor.Shape{1, 1, 2, 3})
		out := backend.BoxAvgPool2D(x, 5, 5)
		require.Equal(t, x.Shape(), out.Shape())
		for _, v := range out.Data() {
			assert.InDelta(t, 2.5, v, 1e-6)
		}
	})

	t.Run("sliding window with replicate pad", func(t *testing.T) {
		// 1x4 row, window 1x2: valid means [0.5, 1.5, 2.5], padded left 0, right 1.
		x := rawFrom(t, tensor.Shape{1, 1, 1, 4}, 0, 1, 2, 3)
		out := backend.BoxAvgPool2D(x, 1, 2)
		assert.InDeltaSlice(t, []float32{0.5, 1.5, 2.5, 2.5}, out.Data(), 1e-6)
	})

	t.Run("matches direct window mean", func(t *testing.T) {
		rng := rand.New(rand.NewSource(11))
		x := randRaw(rng, tensor.Shape{2, 3, 9, 7})
		kh, kw := 4, 3
		out := backend.BoxAvgPool2D(x, kh, kw)

		vh, vw := 9-kh+1, 7-kw+1
		top, left := (9-vh)/2, (7-vw)/2
		for p := 0; p < 6; p++ {
			plane := x.Data()[p*63 : (p+1)*63]
			for y := 0; y < 9; y++ {
				i := min(max(y-top, 0), vh-1)
				for xx := 0; xx < 7; xx++ {
					j := min(max(xx-left, 0), vw-1)
					var sum float64
					for a := 0; a < kh; a++ {
						for b := 0; b < kw; b++ {
							sum += float64(plane[(i+a)*7+j+b])
						}
					}
					require.InDelta(t, sum/float64(kh*kw), out.Data()[p*63+y*7+xx], 1e-5)
				}
			}
		}
	})
}

func TestLayerNorm2D(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(5))

	x := randRaw(rng, tensor.Shape{2, 5, 3, 4})
	weight := rawFrom(t, tensor.Shape{5}, 1, 1, 1, 1, 1)
	bias := tensor.MustRaw(tensor.Shape{5}, tensor.CPU)

	out := backend.LayerNorm2D(x, weight, bias, 1e-6)
	require.Equal(t, x.Shape(), out.Shape())

	// Every pixel is normalized across its channels.
	for n := 0; n < 2; n++ {
		for p := 0; p < 12; p++ {
			var mean, sq float64
			for c := 0; c < 5; c++ {
				v := float64(out.Data()[(n*5+c)*12+p])
				mean += v
				sq += v * v
			}
			mean /= 5
			assert.InDelta(t, 0, mean, 1e-5)
			assert.InDelta(t, 1, math.Sqrt(sq/5-mean*mean), 1e-3)
		}
	}

	// Affine parameters are applied per channel.
	weight = rawFrom(t, tensor.Shape{5}, 2, 2, 2, 2, 2)
	bias = rawFrom(t, tensor.Shape{5}, 1, 1, 1, 1, 1)
	scaled := backend.LayerNorm2D(x, weight, bias, 1e-6)
	for i := range out.Data() {
		require.InDelta(t, 2*out.Data()[i]+1, scaled.Data()[i], 1e-5)
	}

	require.Panics(t, func() { backend.LayerNorm2D(x, rawFrom(t, tensor.Shape{1}, 1), bias, 1e-6) })
}

func TestChunk(t *testing.T) {
	backend := New()
	x := arange(tensor.Shape{2, 4, 1, 2})

	parts := backend.Chunk(x, 2, 1)
	require.Len(t, parts, 2)
	require.Equal(t, tensor.Shape{2, 2, 1, 2}, parts[0].Shape())
	assert.Equal(t, []float32{0, 1, 2, 3, 8, 9, 10, 11}, parts[0].Data())
	assert.Equal(t, []float32{4, 5, 6, 7, 12, 13, 14, 15}, parts[1].Data())

	require.Panics(t, func() { backend.Chunk(x, 3, 1) })
	require.Panics(t, func() { backend.Chunk(x, 2, 4) })
}
