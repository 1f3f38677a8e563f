// Command splatview opens a window and renders a Gaussian splat file with an orbit
// camera.
//
//	splatview -file scene.ply -sort gpu_indirect_draw
//
// Without -file a procedural splat shell is shown. Controls: WASD orbit, Q/E zoom,
// arrows pan, scroll zoom, left drag orbit, right drag pan, R resets the camera and
// 1/2/3 switch between cpu, gpu and gpu_indirect_draw sorting.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine"
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

type options struct {
	configPath      string
	file            string
	format          string
	sorting         string
	validateShaders bool
	software        bool
	profile         bool
	fpsLimit        float64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a .json/.jsonc/.hujson renderer config")
	flag.StringVar(&opts.file, "file", "", "splat file to load (.ply, .splat or raw)")
	flag.StringVar(&opts.format, "format", "auto", "splat file format: auto, raw or ply")
	flag.StringVar(&opts.sorting, "sort", "", "override depth_sorting: cpu, gpu or gpu_indirect_draw")
	flag.BoolVar(&opts.validateShaders, "validate-shaders", false, "compile shaders with naga and log problems")
	flag.BoolVar(&opts.software, "software", false, "force the fallback (software) adapter")
	flag.BoolVar(&opts.profile, "profile", true, "log frame statistics once per second")
	flag.Float64Var(&opts.fpsLimit, "fps", 0, "cap the render rate (0 uncaps)")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("[splatview] %v", err)
	}
}

// loadConfig reads the config file when given and applies flag overrides.
func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if opts.sorting != "" {
		d, err := config.ParseDepthSorting(opts.sorting)
		if err != nil {
			return config.Config{}, err
		}
		cfg.DepthSorting = d
	}
	return cfg, cfg.Validate()
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	format, err := loader.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	win, err := window.NewWindow(
		window.WithTitle("oxy-splat"),
		window.WithSize(int(cfg.Surface.Width), int(cfg.Surface.Height)),
		window.WithSizeLimits(320, 240, 0, 0),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	r, err := renderer.NewWindowRenderer(win, cfg,
		renderer.WithForceSoftwareRenderer(opts.software),
		renderer.WithShaderValidation(opts.validateShaders),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	width, height := win.FramebufferSize()
	cam := camera.NewCamera(
		camera.WithAspect(float32(width)/float32(max(height, 1))),
		camera.WithNear(0.05),
		camera.WithFar(500),
		camera.WithController(camera.NewOrbitController(
			camera.WithRadius(4),
			camera.WithElevation(0.3),
			camera.WithRadiusBounds(0.5, 200),
		)),
	)

	sc := scene.NewScene("splatview", cam,
		scene.WithLoader(loader.NewLoader(loader.WithMaxSplats(int(cfg.MaxSplatCount)))),
		scene.WithComputeWorkers(cfg.ComputeWorkers),
	)
	defer sc.Close()

	if opts.file != "" {
		if err := sc.Load(opts.file, format); err != nil {
			return err
		}
	} else if err := sc.SetSplats(demoShell(int(min(cfg.MaxSplatCount, 4096)))); err != nil {
		return err
	}
	common.Logf("[splatview] %s: %d splats, depth sorting %s",
		cmp.Or(opts.file, "procedural shell"), sc.SplatCount(), cfg.DepthSorting)

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithScene(sc),
		engine.WithProfiling(opts.profile),
		engine.WithTickRate(60),
	)
	eng.SetRenderFrameLimit(opts.fpsLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("WASD orbit | Q/E zoom | arrows pan | drag: left orbit, right pan | R reset | 1/2/3 cpu/gpu/indirect")
	return eng.Run(ctx)
}

// demoShell lays n splats on a unit sphere along a golden-angle spiral, colored by
// direction.
func demoShell(n int) []splat.Splat {
	golden := math.Pi * (3 - math.Sqrt(5))
	splats := make([]splat.Splat, n)
	for i := range splats {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		sin, cos := math.Sincos(golden * float64(i))
		dir := mgl32.Vec3{float32(cos * r), float32(y), float32(sin * r)}

		s := splat.Default()
		s.Center = dir
		s.Normal = dir
		s.Color = mgl32.Vec4{0.5 + dir.X()/2, 0.5 + dir.Y()/2, 0.5 + dir.Z()/2, 0.9}
		splats[i] = s
	}
	return splats
}
