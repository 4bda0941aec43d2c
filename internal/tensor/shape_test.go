package tensor

import (
	"testing"
)

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{4, 1, 960, 240}, 921600},
		{Shape{2, 3, 4}, 24},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("Shape%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{1, 3, 8, 8}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Shape{1, 0, 8}).Validate(); err == nil {
		t.Error("expected error for zero dimension")
	}
	if err := (Shape{-2}).Validate(); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestShapeStrides(t *testing.T) {
	got := Shape{2, 3, 4, 5}.ComputeStrides()
	want := []int{60, 20, 5, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strides = %v, want %v", got, want)
		}
	}
}

func TestShapeNCHW(t *testing.T) {
	n, c, h, w := Shape{4, 1, 960, 240}.NCHW()
	if n != 4 || c != 1 || h != 960 || w != 240 {
		t.Errorf("NCHW() = %d,%d,%d,%d", n, c, h, w)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for 3D shape")
		}
	}()
	Shape{1, 2, 3}.NCHW()
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{4, 16, 8, 8}, Shape{4, 16, 8, 8}, Shape{4, 16, 8, 8}, false, false},
		{"channel vector", Shape{4, 16, 8, 8}, Shape{1, 16, 1, 1}, Shape{4, 16, 8, 8}, true, false},
		{"channel vector first", Shape{1, 16, 1, 1}, Shape{4, 16, 8, 8}, Shape{4, 16, 8, 8}, true, false},
		{"missing leading", Shape{4, 16, 8, 8}, Shape{8}, Shape{4, 16, 8, 8}, true, false},
		{"rank only", Shape{2, 3}, Shape{1, 2, 3}, Shape{1, 2, 3}, true, false},
		{"incompatible", Shape{4, 16, 8, 8}, Shape{4, 32, 8, 8}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertEqualShape(t, tt.want, got, "broadcast shape")
			if broadcast != tt.broadcast {
				t.Errorf("needsBroadcast = %v, want %v", broadcast, tt.broadcast)
			}
		})
	}
}

func TestRawReshapeSharesData(t *testing.T) {
	raw := MustRaw(Shape{2, 6}, CPU)
	view, err := raw.Reshape(Shape{1, 3, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	view.Data()[5] = 7
	if raw.Data()[5] != 7 {
		t.Error("reshape should be a view of the same buffer")
	}

	if _, err := raw.Reshape(Shape{5}); err == nil {
		t.Error("expected error for element count mismatch")
	}

	clone := raw.Clone()
	clone.Data()[5] = 1
	if raw.Data()[5] != 7 {
		t.Error("clone should own its buffer")
	}
	if raw.ByteSize() != 48 {
		t.Errorf("ByteSize() = %d, want 48", raw.ByteSize())
	}
}
