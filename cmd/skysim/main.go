package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"skysim/pkg/catalog"
	"skysim/pkg/checkpoint"
	"skysim/pkg/config"
	"skysim/pkg/profile"
	"skysim/pkg/render"
	"skysim/pkg/visualization"
)

func main() {
	// Parse command line arguments
	scenePath := flag.String("scene", "", "YAML scene file: observation, detectors, bandpasses, sources")
	configPath := flag.String("config", "skysim.yaml", "Configuration file (defaults apply if missing)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	quicklook := flag.Bool("quicklook", false, "Also write a PNG preview per detector image")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *scenePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("SKYSIM: PHOTON-SHOOTING EXPOSURE SIMULATOR")
	fmt.Println("================================")

	scene, err := catalog.LoadScene(*scenePath)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}
	fmt.Printf("Loaded scene: %d detectors, %d sources, visit %d\n",
		len(scene.Detectors), len(scene.Sources), scene.Observation.VisitID)

	bands := cfg.Rendering.Bands
	if scene.Observation.Band != "" {
		bands = []string{scene.Observation.Band}
	}

	var ckpt *checkpoint.Manager
	if cfg.Checkpoint.Path != "" {
		ckpt = checkpoint.NewManager(cfg.Checkpoint.Path, cfg.Checkpoint.Cadence)
	}

	// The stamp sizer's surface-brightness floor is a single scalar, so it
	// is taken from the visit's primary band. Scenes name one observation
	// band, which makes bands a single-element list in practice; a
	// multi-band run sizes every stamp against the first band's sky level.
	skyBG := 0.0
	if len(bands) > 0 {
		skyBG = cfg.Sky.LevelPerPixel[bands[0]]
	}

	sess, err := render.New(&scene.Observation, scene.Detectors, render.Options{
		Bands:      bands,
		Bandpasses: scene.Bandpasses,
		PSF: profile.KolmogorovGaussianPSF{
			Airmass:   scene.Observation.Airmass(),
			RawSeeing: scene.Observation.RawSeeing,
			Band:      scene.Observation.Band,
		},
		Background: render.FlatSkyBackground{
			LevelPerPixel: cfg.Sky.LevelPerPixel,
			ShotNoise:     cfg.Sky.ShotNoise,
		},
		Seed:               cfg.Rendering.Seed,
		Checkpoint:         ckpt,
		CentroidBase:       cfg.Output.CentroidBase,
		SkyBGPerPixel:      skyBG,
		PixelScale:         cfg.Rendering.PixelScale,
		MaxStampSide:       cfg.Rendering.MaxStampSide,
		ConservativeFactor: cfg.Rendering.ConservativeFactor,
		ApplySensorModel:   cfg.Rendering.ApplySensorModel,
	})
	if err != nil {
		log.Fatalf("Failed to create rendering session: %v", err)
	}

	if err := sess.Restore(); err != nil {
		log.Fatalf("Failed to restore checkpoint: %v", err)
	}
	if n := sess.DrawnCount(); n > 0 {
		fmt.Printf("Resumed from checkpoint: %d sources already drawn\n", n)
	}

	fmt.Println("Starting exposure rendering...")
	startTime := time.Now()
	offFrame := 0
	for _, src := range scene.Sources {
		dispatch, err := sess.DrawSource(src)
		if err != nil {
			log.Fatalf("Failed to draw source %d: %v", src.ID, err)
		}
		if dispatch == render.NoDetectors {
			offFrame++
		}
		if cfg.Output.Verbose && dispatch != "" && dispatch != render.NoDetectors {
			fmt.Printf("Source %d -> %s\n", src.ID, dispatch)
		}
	}
	if err := sess.MaybeCheckpoint(true); err != nil {
		log.Fatalf("Failed to write final checkpoint: %v", err)
	}
	renderTime := time.Since(startTime)

	images, err := sess.WriteImages(cfg.Output.Dir, cfg.Output.NameRoot)
	if err != nil {
		log.Fatalf("Failed to write images: %v", err)
	}
	centroids, err := sess.WriteCentroidFiles()
	if err != nil {
		log.Fatalf("Failed to write centroid files: %v", err)
	}

	if *quicklook {
		for _, img := range sess.Accumulator().Images() {
			name := img.Det.FileKey() + "_" + img.Band + ".png"
			if cfg.Output.NameRoot != "" {
				name = cfg.Output.NameRoot + "_" + name
			}
			path := filepath.Join(cfg.Output.Dir, name)
			if err := visualization.NewViewer(img.Pix, 0).SavePNG(path); err != nil {
				log.Printf("Warning: failed to write quicklook %s: %v", path, err)
			}
		}
	}

	fmt.Printf("\nExposure rendering completed in %.2f seconds!\n", renderTime.Seconds())
	fmt.Printf("Sources drawn: %d (%d off-frame)\n", sess.DrawnCount(), offFrame)
	fmt.Printf("Images written: %d to %s\n", len(images), cfg.Output.Dir)
	if len(centroids) > 0 {
		fmt.Printf("Centroid files written: %d\n", len(centroids))
	}
}
