package measurement

import (
	"testing"
)

func TestParse_CanonicalFields(t *testing.T) {
	body := []byte(`{
		"units": "Delta2",
		"little_h": true,
		"spectral_windows": [
			{
				"bandpowers": [[1.0, 0.1], [2.0, -0.2]],
				"covariance": [[0.01, 0.0], [0.0, 0.01]],
				"k_bin_centers": [0.1, 0.3],
				"redshift": 7.9
			}
		]
	}`)

	m, err := Parse(body)
	if err != nil {
		t.Fatal(err)
	}
	if m.Units != "Delta2" || !m.LittleH {
		t.Errorf("conventions wrong: units=%q little_h=%v", m.Units, m.LittleH)
	}
	if len(m.Windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(m.Windows))
	}
	w := m.Windows[0]
	if w.Bandpowers[0] != complex(1, 0.1) || w.Bandpowers[1] != complex(2, -0.2) {
		t.Errorf("complex pairs misparsed: %v", w.Bandpowers)
	}
	if w.Redshift != 7.9 {
		t.Errorf("redshift = %g", w.Redshift)
	}
}

func TestParse_FieldVariants(t *testing.T) {
	body := []byte(`{
		"ps_units": "mK2",
		"windows": [
			{
				"data": [1.0, 2.0],
				"cov": [[1, 0], [0, 1]],
				"kbin_centers": [0.2, 0.4],
				"z": 8.2
			}
		]
	}`)

	m, err := Parse(body)
	if err != nil {
		t.Fatal(err)
	}
	if m.Units != "mK2" {
		t.Errorf("units variant not probed: %q", m.Units)
	}
	w := m.Windows[0]
	if len(w.Bandpowers) != 2 || w.Bandpowers[0] != 1 {
		t.Errorf("data variant misparsed: %v", w.Bandpowers)
	}
	if w.Redshift != 8.2 {
		t.Errorf("z variant misparsed: %g", w.Redshift)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("invalid JSON should fail")
	}
	if _, err := Parse([]byte(`{"units": "mK2"}`)); err == nil {
		t.Error("missing windows array should fail")
	}
}
