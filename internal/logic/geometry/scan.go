package geometry

import "sort"

// Scan describes one raster: how many rows it has and how far Y travels
// over the whole raster.
type Scan struct {
	Size    int // size code as read from the size file
	Rows    int // number of X sweeps
	YRewind int // Y pulses covering every row, RowSteps * Rows
}

// Valid reports whether the size code matched a preset.
func (s Scan) Valid() bool {
	return s.Rows > 0
}

// ScanFor derives the scan for a size code. Unknown codes (including -1)
// give a zero-row scan.
func ScanFor(size int, presets map[int]int, rowSteps int) Scan {
	rows, ok := presets[size]
	if !ok || rows <= 0 || rowSteps <= 0 {
		return Scan{Size: size}
	}
	return Scan{
		Size:    size,
		Rows:    rows,
		YRewind: rows * rowSteps,
	}
}

// Codes returns the known size codes in ascending order.
func Codes(presets map[int]int) []int {
	codes := make([]int, 0, len(presets))
	for code := range presets {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}
