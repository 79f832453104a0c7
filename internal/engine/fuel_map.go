package engine

import "math"

// Fuel map bin layout: load 0..100 step 5, rpm 0..7500 step 250.
const (
	LoadBinStep  = 5.0
	LoadBinCount = 21
	RPMBinStep   = 250.0
	RPMBinCount  = 31
)

// FuelMapGrid is a value copy of the fuel map, indexed [load][rpm].
type FuelMapGrid [LoadBinCount][RPMBinCount]float64

// FuelMap is a load x rpm table of the most recently observed fuel rate.
// Cells are overwritten, not averaged.
type FuelMap struct {
	cells FuelMapGrid
}

// binIndex returns the index of the largest bin edge <= v. Values at or
// beyond the last edge land in the last bin; negative or NaN values are out
// of range.
func binIndex(v, step float64, count int) (int, bool) {
	if math.IsNaN(v) || v < 0 {
		return 0, false
	}
	idx := int(math.Floor(v / step))
	if idx >= count {
		idx = count - 1
	}
	return idx, true
}

// LoadBin returns the load bin for a load percentage.
func LoadBin(load float64) (int, bool) {
	return binIndex(load, LoadBinStep, LoadBinCount)
}

// RPMBin returns the rpm bin for an engine speed.
func RPMBin(rpm float64) (int, bool) {
	return binIndex(rpm, RPMBinStep, RPMBinCount)
}

// Update stores fuelRate in the (load, rpm) cell when both are in range.
func (f *FuelMap) Update(rpm, load, fuelRate float64) bool {
	r, ok := RPMBin(rpm)
	if !ok {
		return false
	}
	l, ok := LoadBin(load)
	if !ok {
		return false
	}
	f.cells[l][r] = fuelRate
	return true
}

// At returns the cell for the given bin indices.
func (f *FuelMap) At(loadBin, rpmBin int) float64 {
	return f.cells[loadBin][rpmBin]
}

// Snapshot returns a copy of the table.
func (f *FuelMap) Snapshot() FuelMapGrid {
	return f.cells
}

// Range returns the minimum and maximum cell values.
func (g *FuelMapGrid) Range() (min, max float64) {
	min, max = g[0][0], g[0][0]
	for i := range g {
		for _, v := range g[i] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}
