package catalog

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestKindFromString covers the accepted spellings and the error path.
func TestKindFromString(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"pointSource", KindPoint},
		{"point", KindPoint},
		{"sersic", KindSersic},
		{"randomWalk", KindRandomWalk},
		{"RandomWalk", KindRandomWalk},
		{"imageStamp", KindImageStamp},
		{"FitsImage", KindImageStamp},
	}
	for _, tc := range cases {
		got, err := KindFromString(tc.in)
		if err != nil {
			t.Errorf("KindFromString(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("KindFromString(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := KindFromString("quasarBlob"); err == nil {
		t.Error("Expected an error for an unknown profile kind")
	}
}

// TestSourceValidate checks that malformed parameter blocks are rejected
// at construction time.
func TestSourceValidate(t *testing.T) {
	cases := []struct {
		name    string
		src     Source
		wantErr bool
	}{
		{"valid point", Source{ID: 1, Kind: KindPoint, Mu: 1}, false},
		{"sersic without params", Source{ID: 2, Kind: KindSersic, Mu: 1}, true},
		{"sersic bad index", Source{ID: 3, Kind: KindSersic, Mu: 1,
			Sersic: &SersicParams{Index: -1, HalfLightRadiusArcsec: 1, MajorAxisRad: 1, MinorAxisRad: 1}}, true},
		{"valid sersic", Source{ID: 4, Kind: KindSersic, Mu: 1,
			Sersic: &SersicParams{Index: 1, HalfLightRadiusArcsec: 1, MajorAxisRad: 1, MinorAxisRad: 1}}, false},
		{"random walk without points", Source{ID: 5, Kind: KindRandomWalk, Mu: 1,
			RandomWalk: &RandomWalkParams{NPoints: 0, HalfLightRadiusArcsec: 1, MajorAxisRad: 1, MinorAxisRad: 1}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.src.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

// TestAirmass checks the zenith case and a moderate altitude against the
// thin-shell formula.
func TestAirmass(t *testing.T) {
	zenith := Observation{AltitudeDeg: 90}
	if got := zenith.Airmass(); math.Abs(got-1) > 1e-12 {
		t.Errorf("Zenith airmass %g, want 1", got)
	}
	tilted := Observation{AltitudeDeg: 45}
	if got := tilted.Airmass(); got <= 1.3 || got >= 1.5 {
		t.Errorf("Airmass at 45 degrees is %g, expected about 1.4", got)
	}
}

// TestEffectiveWavelength verifies the throughput-weighted mean against
// a flat filter.
func TestEffectiveWavelength(t *testing.T) {
	bp := &Bandpass{
		WavelenNM:  []float64{500, 600, 700},
		Throughput: []float64{1, 1, 1},
	}
	if got := bp.EffectiveWavelength(); math.Abs(got-600) > 1e-9 {
		t.Errorf("Flat bandpass effective wavelength %g, want 600", got)
	}
}

// TestWavelengthSampler checks that samples respect the support of the
// SED x bandpass product and follow the CDF ordering.
func TestWavelengthSampler(t *testing.T) {
	sed := &SED{
		WavelenNM: []float64{400, 600, 800},
		Flambda:   []float64{1, 1, 1},
	}
	bp := &Bandpass{
		WavelenNM:  []float64{500, 700},
		Throughput: []float64{1, 1},
	}
	s, err := NewWavelengthSampler(sed, bp)
	if err != nil {
		t.Fatalf("NewWavelengthSampler failed: %v", err)
	}

	lo, mid, hi := s.Sample(0), s.Sample(0.5), s.Sample(0.999)
	if lo < 499 || hi > 701 {
		t.Errorf("Samples escaped the bandpass support: %g .. %g", lo, hi)
	}
	if !(lo <= mid && mid <= hi) {
		t.Errorf("Inverse CDF is not monotone: %g, %g, %g", lo, mid, hi)
	}
	if math.Abs(mid-600) > 5 {
		t.Errorf("Median of a flat product is %g, want about 600", mid)
	}

	// Degenerate input: SED entirely outside the filter.
	far := &SED{WavelenNM: []float64{900, 1000}, Flambda: []float64{1, 1}}
	if _, err := NewWavelengthSampler(far, bp); err == nil {
		t.Error("Expected an error for disjoint SED and bandpass ranges")
	}
}

// TestLoadScene exercises the YAML loader end to end, including source
// validation and detector construction.
func TestLoadScene(t *testing.T) {
	dir, err := os.MkdirTemp("", "scene-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	scene := `
observation:
  visitId: 42
  band: r
  altitude: 75
  rawSeeing: 0.7
  fwhmGeom: 0.8
detectors:
  - name: "R22_S11"
    xMinPix: 0
    xMaxPix: 99
    yMinPix: 0
    yMaxPix: 99
    pixelScale: 0.2
    xPupilCenter: 0
    yPupilCenter: 0
    gain: 1.5
sources:
  - id: 1
    kind: pointSource
    xPupil: 1.0
    yPupil: -1.0
    fluxes:
      r: 1000
  - id: 2
    kind: sersic
    sersic:
      index: 1
      halflightradiusarcsec: 1.2
      majoraxisrad: 1
      minoraxisrad: 0.7
    fluxes:
      r: 500
`
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(scene), 0o644); err != nil {
		t.Fatalf("Failed to write scene file: %v", err)
	}

	loaded, err := LoadScene(path)
	if err != nil {
		t.Fatalf("LoadScene failed: %v", err)
	}
	if loaded.Observation.VisitID != 42 {
		t.Errorf("Visit id %d, want 42", loaded.Observation.VisitID)
	}
	if len(loaded.Detectors) != 1 {
		t.Fatalf("Expected 1 detector, got %d", len(loaded.Detectors))
	}
	det := loaded.Detectors[0]
	if det.Gain != 1.5 {
		t.Errorf("Gain %g, want 1.5", det.Gain)
	}
	// A 100-pixel detector at 0.2 arcsec/pixel spans about 19.8 arcsec.
	if width := det.XMaxArcsec - det.XMinArcsec; math.Abs(width-19.8) > 0.01 {
		t.Errorf("Pupil footprint width %g arcsec, want about 19.8", width)
	}
	if len(loaded.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(loaded.Sources))
	}
	if loaded.Sources[0].Mu != 1 {
		t.Errorf("Unset magnification should default to 1, got %g", loaded.Sources[0].Mu)
	}
	if loaded.Sources[1].Kind != KindSersic {
		t.Errorf("Second source kind %v, want sersic", loaded.Sources[1].Kind)
	}

	// A scene with an unknown profile kind must fail to load.
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("sources:\n  - id: 1\n    kind: wormhole\n"), 0o644); err != nil {
		t.Fatalf("Failed to write bad scene: %v", err)
	}
	if _, err := LoadScene(bad); err == nil {
		t.Error("Expected LoadScene to reject an unknown profile kind")
	}
}
