package catalog

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"skysim/pkg/geom"
	"skysim/pkg/wcs"
)

// Scene is a fully parsed exposure description: the observation metadata,
// the focal-plane detectors, the filter curves, and the source catalog.
type Scene struct {
	Observation Observation
	Detectors   []*geom.Detector
	Bandpasses  map[string]*Bandpass
	Sources     []*Source
}

// sceneFile mirrors the YAML layout of a scene file.
type sceneFile struct {
	Observation Observation          `yaml:"observation"`
	Detectors   []detectorSpec       `yaml:"detectors"`
	Bandpasses  map[string]*Bandpass `yaml:"bandpasses"`
	Sources     []sourceSpec         `yaml:"sources"`
}

type detectorSpec struct {
	Name string `yaml:"name"`

	XMinPix int `yaml:"xMinPix"`
	XMaxPix int `yaml:"xMaxPix"`
	YMinPix int `yaml:"yMinPix"`
	YMaxPix int `yaml:"yMaxPix"`

	// Linear tangent-plane mapping: pupil position of the detector
	// center and the plate scale.
	PixelScale         float64 `yaml:"pixelScale"`
	XPupilCenterArcsec float64 `yaml:"xPupilCenter"`
	YPupilCenterArcsec float64 `yaml:"yPupilCenter"`

	Gain           float64 `yaml:"gain"`
	DiffusionSigma float64 `yaml:"diffusionSigma"`

	TreeRing *treeRingSpec `yaml:"treeRing"`
}

type treeRingSpec struct {
	CenterX   float64 `yaml:"centerX"`
	CenterY   float64 `yaml:"centerY"`
	Amplitude float64 `yaml:"amplitude"` // pixels
	PeriodPix float64 `yaml:"period"`    // pixels
}

type sourceSpec struct {
	ID           uint64             `yaml:"id"`
	XPupilArcsec float64            `yaml:"xPupil"`
	YPupilArcsec float64            `yaml:"yPupil"`
	Kind         string             `yaml:"kind"`
	Sersic       *SersicParams      `yaml:"sersic"`
	RandomWalk   *RandomWalkParams  `yaml:"randomWalk"`
	ImageStamp   *ImageStampParams  `yaml:"imageStamp"`
	G1           float64            `yaml:"g1"`
	G2           float64            `yaml:"g2"`
	Mu           float64            `yaml:"mu"`
	Fluxes       map[string]float64 `yaml:"fluxes"`
	SED          *SED               `yaml:"sed"`
}

// LoadScene reads and validates a YAML scene file. Every source is
// validated here so that unknown profile kinds and malformed parameter
// blocks fail at load time.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	var sf sceneFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse scene file: %w", err)
	}

	scene := &Scene{
		Observation: sf.Observation,
		Bandpasses:  sf.Bandpasses,
	}

	for _, ds := range sf.Detectors {
		if ds.PixelScale <= 0 {
			return nil, fmt.Errorf("detector %s: pixel scale must be positive", ds.Name)
		}
		pix := geom.Bounds{XMin: ds.XMinPix, XMax: ds.XMaxPix, YMin: ds.YMinPix, YMax: ds.YMaxPix}
		if !pix.Defined() {
			return nil, fmt.Errorf("detector %s: undefined pixel bounds", ds.Name)
		}
		t := wcs.TangentPlane{
			PixelScale:         ds.PixelScale,
			XPupilCenterArcsec: ds.XPupilCenterArcsec,
			YPupilCenterArcsec: ds.YPupilCenterArcsec,
			XCenterPix:         float64(ds.XMinPix+ds.XMaxPix) / 2.0,
			YCenterPix:         float64(ds.YMinPix+ds.YMaxPix) / 2.0,
		}
		det := geom.NewDetector(ds.Name, pix, t, ds.Gain)
		det.DiffusionSigma = ds.DiffusionSigma
		if tr := ds.TreeRing; tr != nil {
			det.TreeRing = NewCosineTreeRing(tr.CenterX, tr.CenterY, tr.Amplitude, tr.PeriodPix)
		}
		scene.Detectors = append(scene.Detectors, det)
	}

	for _, ss := range sf.Sources {
		kind, err := KindFromString(ss.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", ss.ID, err)
		}
		src := &Source{
			ID:           ss.ID,
			XPupilArcsec: ss.XPupilArcsec,
			YPupilArcsec: ss.YPupilArcsec,
			Kind:         kind,
			Sersic:       ss.Sersic,
			RandomWalk:   ss.RandomWalk,
			ImageStamp:   ss.ImageStamp,
			G1:           ss.G1,
			G2:           ss.G2,
			Mu:           ss.Mu,
			Fluxes:       ss.Fluxes,
			SED:          ss.SED,
		}
		if src.Mu == 0 {
			src.Mu = 1
		}
		if err := src.Validate(); err != nil {
			return nil, err
		}
		scene.Sources = append(scene.Sources, src)
	}

	return scene, nil
}

// NewCosineTreeRing builds the simple radial impurity-ring model used by
// scene files: a cosine ripple of the given amplitude and period.
func NewCosineTreeRing(centerX, centerY, amplitude, periodPix float64) *geom.TreeRing {
	if periodPix <= 0 {
		periodPix = 100
	}
	return &geom.TreeRing{
		CenterX: centerX,
		CenterY: centerY,
		Amplitude: func(r float64) float64 {
			return amplitude * (1 + math.Cos(2*math.Pi*r/periodPix)) / 2
		},
	}
}
