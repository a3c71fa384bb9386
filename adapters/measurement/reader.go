package measurement

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// ReadFile parses a measurement exported by the estimation pipeline as JSON.
// Field names vary between pipeline versions, so lookups probe the known
// spellings in order.
func ReadFile(path string) (*Measurement, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read measurement file: %w", err)
	}
	return Parse(body)
}

// Parse decodes a measurement from its JSON form.
func Parse(body []byte) (*Measurement, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("measurement file is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	m := &Measurement{
		Units:   probeString(root, "units", "ps_units", "unit"),
		LittleH: probe(root, "little_h", "littleh").Bool(),
		History: probeString(root, "history"),
	}

	windows := probe(root, "spectral_windows", "windows", "spw")
	if !windows.IsArray() {
		return nil, fmt.Errorf("measurement file has no spectral windows array")
	}
	for _, w := range windows.Array() {
		sw := SpectralWindow{
			Bandpowers:        complexSlice(probe(w, "bandpowers", "data")),
			SampleBandpowers:  complexMatrix(probe(w, "sample_bandpowers", "samples")),
			Flags:             boolSlice(probe(w, "flags", "flag_mask")),
			Covariance:        floatMatrix(probe(w, "covariance", "cov")),
			SampleCovariances: floatCube(probe(w, "sample_covariances", "sample_cov")),
			WindowFunction:    floatMatrix(probe(w, "window_function", "window")),
			KBinCenters:       floatSlice(probe(w, "k_bin_centers", "kbin_centers", "k_centers")),
			KBinEdges:         floatSlice(probe(w, "k_bin_edges", "kbin_edges", "k_edges")),
			TheoryK:           floatSlice(probe(w, "theory_k", "k_grid")),
			KPerp:             floatSlice(probe(w, "k_perp", "kperp")),
			KPar:              floatSlice(probe(w, "k_par", "kpar", "k_parallel")),
			Redshift:          probe(w, "redshift", "z").Float(),
		}
		m.Windows = append(m.Windows, sw)
	}
	return m, nil
}

func probe(r gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		if v := r.Get(name); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func probeString(r gjson.Result, names ...string) string {
	return probe(r, names...).String()
}

// complexValue accepts either a plain number or a [re, im] pair.
func complexValue(v gjson.Result) complex128 {
	if v.IsArray() {
		parts := v.Array()
		if len(parts) == 2 {
			return complex(parts[0].Float(), parts[1].Float())
		}
	}
	return complex(v.Float(), 0)
}

func complexSlice(v gjson.Result) []complex128 {
	if !v.IsArray() {
		return nil
	}
	arr := v.Array()
	out := make([]complex128, len(arr))
	for i, e := range arr {
		out[i] = complexValue(e)
	}
	return out
}

func complexMatrix(v gjson.Result) [][]complex128 {
	if !v.IsArray() {
		return nil
	}
	rows := v.Array()
	out := make([][]complex128, len(rows))
	for i, row := range rows {
		out[i] = complexSlice(row)
	}
	return out
}

func floatSlice(v gjson.Result) []float64 {
	if !v.IsArray() {
		return nil
	}
	arr := v.Array()
	out := make([]float64, len(arr))
	for i, e := range arr {
		out[i] = e.Float()
	}
	return out
}

func floatMatrix(v gjson.Result) [][]float64 {
	if !v.IsArray() {
		return nil
	}
	rows := v.Array()
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = floatSlice(row)
	}
	return out
}

func floatCube(v gjson.Result) [][][]float64 {
	if !v.IsArray() {
		return nil
	}
	mats := v.Array()
	out := make([][][]float64, len(mats))
	for i, m := range mats {
		out[i] = floatMatrix(m)
	}
	return out
}

func boolSlice(v gjson.Result) []bool {
	if !v.IsArray() {
		return nil
	}
	arr := v.Array()
	out := make([]bool, len(arr))
	for i, e := range arr {
		out[i] = e.Bool()
	}
	return out
}
