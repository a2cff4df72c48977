package geometry

import (
	"reflect"
	"testing"
)

var presets = map[int]int{1: 10, 2: 20}

func TestScanFor(t *testing.T) {
	cases := []struct {
		name string
		size int
		want Scan
	}{
		{"small", 1, Scan{Size: 1, Rows: 10, YRewind: 3000}},
		{"large", 2, Scan{Size: 2, Rows: 20, YRewind: 6000}},
		{"none", -1, Scan{Size: -1}},
		{"unknown", 7, Scan{Size: 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScanFor(tc.size, presets, 300)
			if got != tc.want {
				t.Errorf("ScanFor(%d) = %+v, want %+v", tc.size, got, tc.want)
			}
			if got.Valid() != (tc.want.Rows > 0) {
				t.Errorf("Valid() = %v", got.Valid())
			}
		})
	}
}

func TestScanFor_ZeroRowSteps(t *testing.T) {
	if s := ScanFor(1, presets, 0); s.Valid() {
		t.Errorf("ScanFor with row steps 0 = %+v, want invalid", s)
	}
}

func TestCodes(t *testing.T) {
	got := Codes(map[int]int{3: 1, 1: 10, 2: 20})
	if !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("Codes() = %v, want [1 2 3]", got)
	}
}
