package render

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"skysim/pkg/fits"
)

// WriteImages persists every accumulated buffer to disk as a FITS image
// named [nameRoot_]fileKey_band.fits under dir, in target creation
// order. An empty nameRoot drops the prefix.
func (o *Orchestrator) WriteImages(dir, nameRoot string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	for _, img := range o.acc.Images() {
		name := img.Det.FileKey() + "_" + img.Band + ".fits"
		if nameRoot != "" {
			name = nameRoot + "_" + name
		}
		path := filepath.Join(dir, name)

		rows, cols := img.Pix.Dims()
		data := make([]float64, 0, rows*cols)
		for r := 0; r < rows; r++ {
			data = append(data, img.Pix.RawRowView(r)...)
		}
		err := fits.WriteImage(path, data, cols, rows,
			fits.StringCard("DETNAME", img.Det.Name, "detector name"),
			fits.StringCard("BAND", img.Band, "filter band"),
			fits.FloatCard("GAIN", img.Det.Gain, "electrons per ADU"),
			fits.IntCard("VISIT", o.obs.VisitID, "visit id"),
			fits.FloatCard("MJD-OBS", o.obs.MJD, "exposure midpoint MJD"),
		)
		if err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteCentroidFiles flushes the per-source centroid log, one gzip text
// file per (detector, band) pair, named
// <base><visit>_<fileKey>_<band>.txt.gz. Rows keep source visitation
// order. It is a no-op when centroid logging is disabled.
func (o *Orchestrator) WriteCentroidFiles() ([]string, error) {
	if o.centroidBase == "" {
		return nil, nil
	}

	type group struct{ fileKey, band string }
	rows := make(map[group][]int)
	var order []group
	for i, c := range o.centroids {
		g := group{c.FileKey, c.Band}
		if _, seen := rows[g]; !seen {
			order = append(order, g)
		}
		rows[g] = append(rows[g], i)
	}

	var written []string
	for _, g := range order {
		path := fmt.Sprintf("%s%d_%s_%s.txt.gz", o.centroidBase, o.obs.VisitID, g.fileKey, g.band)
		if err := o.writeCentroidFile(path, rows[g]); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (o *Orchestrator) writeCentroidFile(path string, idx []int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create centroid dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create centroid file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := fmt.Fprintf(zw, "%-15s %15s %10s %10s\n", "SourceID", "Flux", "xPix", "yPix"); err != nil {
		return fmt.Errorf("write centroid header: %w", err)
	}
	for _, i := range idx {
		c := o.centroids[i]
		if _, err := fmt.Fprintf(zw, "%-15d %15.5f %10.2f %10.2f\n", c.SourceID, c.Flux, c.XPix, c.YPix); err != nil {
			return fmt.Errorf("write centroid row: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush centroid gzip: %w", err)
	}
	return nil
}
