package chunk

import "testing"

func TestKeyAtFloorsNegatives(t *testing.T) {
	cases := []struct {
		px, pz float64
		want   Key
	}{
		{0, 0, Key{0, 0}},
		{15.9, 15.9, Key{0, 0}},
		{16, 0, Key{1, 0}},
		{-5, 3, Key{-1, 0}},
		{-0.1, -16, Key{-1, -1}},
		{-16.01, 40, Key{-2, 2}},
	}
	for _, c := range cases {
		if got := KeyAt(c.px, c.pz); got != c.want {
			t.Fatalf("KeyAt(%v,%v)=%v want %v", c.px, c.pz, got, c.want)
		}
	}
}

func TestLocal(t *testing.T) {
	lx, lz := Local(-1, 17)
	if lx != 15 || lz != 1 {
		t.Fatalf("Local(-1,17)=%d,%d", lx, lz)
	}
}

func TestParseRoundTrip(t *testing.T) {
	p := BlockPos{X: -3, Y: -7, Z: 12}
	got, err := ParseBlockPos(p.String())
	if err != nil || got != p {
		t.Fatalf("ParseBlockPos(%q)=%v,%v", p.String(), got, err)
	}
	c := CellPos{X: 4, Z: -9}
	gc, err := ParseCellPos(c.String())
	if err != nil || gc != c {
		t.Fatalf("ParseCellPos(%q)=%v,%v", c.String(), gc, err)
	}
	k, err := ParseKey("-1, 2")
	if err != nil || k != (Key{-1, 2}) {
		t.Fatalf("ParseKey=%v,%v", k, err)
	}
	if _, err := ParseBlockPos("1,2"); err == nil {
		t.Fatalf("expected error for short block pos")
	}
	if _, err := ParseCellPos("a,b"); err == nil {
		t.Fatalf("expected error for non-numeric cell pos")
	}
}

func TestSortKeys(t *testing.T) {
	keys := []Key{{1, 0}, {-1, 5}, {-1, -2}, {0, 0}}
	SortKeys(keys)
	want := []Key{{-1, -2}, {-1, 5}, {0, 0}, {1, 0}}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("SortKeys=%v", keys)
		}
	}
}
