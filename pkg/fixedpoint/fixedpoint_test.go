package fixedpoint

import "testing"

func TestDivCeilU64(t *testing.T) {
	cases := []struct{ a, b, want uint64 }{
		{10, 3, 4},
		{9, 3, 3},
		{0, 5, 0},
		{1, 1, 1},
	}
	for _, c := range cases {
		got, err := DivCeilU64(c.a, c.b)
		if err != nil {
			t.Fatalf("DivCeilU64(%d,%d) error: %v", c.a, c.b, err)
		}
		if got != c.want {
			t.Errorf("DivCeilU64(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestDivCeilU64DivByZero(t *testing.T) {
	if _, err := DivCeilU64(1, 0); err != ErrDivByZero {
		t.Fatalf("expected ErrDivByZero, got %v", err)
	}
}

func TestMulDivU64(t *testing.T) {
	got, err := MulDivU64(1_000_000_000_000, 2_000_000_000_000, 3_000_000)
	if err != nil {
		t.Fatal(err)
	}
	want := uint64(666666666666666666)
	if got != want {
		t.Errorf("MulDivU64 = %d, want %d", got, want)
	}
}

func TestMulDivU64Overflow(t *testing.T) {
	_, err := MulDivU64(^uint64(0), ^uint64(0), 1)
	if err != ErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestSqrtU64(t *testing.T) {
	cases := []struct{ x, want uint64 }{
		{0, 0},
		{1, 1},
		{4, 2},
		{8, 2},
		{9, 3},
		{1_000_000, 1000},
		{1_000_001, 1000},
	}
	for _, c := range cases {
		if got := SqrtU64(c.x); got != c.want {
			t.Errorf("SqrtU64(%d) = %d, want %d", c.x, got, c.want)
		}
	}
}

func TestMulU64Overflow(t *testing.T) {
	_, err := MulU64(^uint64(0), 2)
	if err != ErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestClampI64(t *testing.T) {
	if got := ClampI64(15, 0, 10); got != 10 {
		t.Errorf("ClampI64 upper = %d, want 10", got)
	}
	if got := ClampI64(-5, 0, 10); got != 0 {
		t.Errorf("ClampI64 lower = %d, want 0", got)
	}
}
