package mathx

import "testing"

func TestFloorDivAndMod(t *testing.T) {
	cases := []struct {
		a, b, q, m int
	}{
		{0, 16, 0, 0},
		{15, 16, 0, 15},
		{16, 16, 1, 0},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.q {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.q)
		}
		if got := Mod(c.a, c.b); got != c.m {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, got, c.m)
		}
	}
}

func TestFloorCellNegative(t *testing.T) {
	if got := FloorCell(-0.5); got != -1 {
		t.Fatalf("FloorCell(-0.5)=%d want -1", got)
	}
	if got := FloorCell(3.99); got != 3 {
		t.Fatalf("FloorCell(3.99)=%d want 3", got)
	}
}

func TestUnitRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		u := Unit(Hash3(42, i, -i, i*7))
		if u < 0 || u >= 1 {
			t.Fatalf("Unit out of range: %v", u)
		}
	}
	if Unit(^uint64(0)) >= 1 {
		t.Fatalf("Unit(max) must stay below 1")
	}
}

func TestHashDeterministic(t *testing.T) {
	if Hash2(7, 3, -4) != Hash2(7, 3, -4) {
		t.Fatalf("Hash2 not deterministic")
	}
	if Hash3(7, 1, 2, 3) == Hash3(8, 1, 2, 3) {
		t.Fatalf("Hash3 should depend on seed")
	}
}
