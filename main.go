package main

import (
	"context"
	"flag"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"booth-camera/pkg/api"
	"booth-camera/pkg/camera"
	"booth-camera/pkg/camera/fake"
	"booth-camera/pkg/camera/v4l"
	"booth-camera/pkg/clock"
	"booth-camera/pkg/config"
	"booth-camera/pkg/schedule"
	"booth-camera/pkg/storage"
	"booth-camera/pkg/texture"
	"booth-camera/pkg/utils"
	"booth-camera/pkg/utils/image"
	"booth-camera/pkg/webdav"
)

var (
	configPath = flag.String("config", "", "json config file")
	port       = flag.Int("port", 0, "ui port, overrides the config")
	storageDir = flag.String("dir", "", "capture directory, overrides the config")
	logLevel   = flag.String("log-level", "", "debug, info, warn or error")
	demo       = flag.Bool("fake", false, "use a generated test camera instead of /dev/video*")

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *storageDir != "" {
		cfg.Storage.Dir = *storageDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err = utils.SetLevel(cfg.LogLevel); err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stg, err := storage.New(afero.NewOsFs(), cfg.Storage.Dir)
	if err != nil {
		logger.Fatal(err)
	}

	clk := clock.New(cfg.NTPServer)
	go clk.Run(ctx, cfg.NTPEvery.D())

	sweeper := schedule.New(ctx, stg)
	sweeper.Begin(cfg.Storage.SweepInterval.D(), cfg.Storage.MaxAge.D())

	initial, err := camera.ParseOrientation(cfg.Camera.Orientation)
	if err != nil {
		logger.Fatal(err)
	}
	tracker := camera.NewOrientationTracker(initial)
	textures := texture.NewRegistry()

	ctrl := camera.NewController(hardware(cfg), textures,
		camera.WithPhotoWriter(stg),
		camera.WithOrientation(tracker),
		camera.WithClock(clk.Now),
	)
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Errorf("close camera: %s", err)
		}
	}()
	ctrl.Watch(ctx)

	if cams, err := ctrl.Cameras(); err != nil {
		logger.Warnf("enumerate cameras: %s", err)
	} else {
		for _, a := range cams {
			logger.Infof("camera %s: %q (%s, %s)", a.ID, a.Device.Name, a.Device.UniqueID, a.Device.Position())
		}
	}

	share := webdav.New(ctx, cfg.WebdavPort, stg.Dir())
	defer share.Stop()

	srv := api.New(api.Options{
		Controller:  ctrl,
		Textures:    textures,
		Orientation: tracker,
		Store:       stg,
		Share:       share,
		Recording:   cfg.Recording,
		Statics:     cfg.Statics,
	})
	defer srv.Close()

	utils.ListenAndServe(srv.Handler(), cfg.Port)
}

func hardware(cfg config.Config) camera.Hardware {
	if *demo {
		hw := fake.NewHardware(
			fake.BuiltIn("demo:0", "Demo Camera"),
			fake.External("usb-demo", "Demo USB Camera"),
		)
		fps := cfg.Camera.FPS
		if fps <= 0 {
			fps = v4l.DefaultFPS
		}
		hw.GenerateFrames(time.Second/time.Duration(fps), cfg.Camera.Width, cfg.Camera.Height)
		if still, err := image.TestPattern(cfg.Camera.Width, cfg.Camera.Height, 0); err == nil {
			hw.SetPhotoData(still)
		}
		logger.Info("using generated test cameras")
		return hw
	}

	return v4l.New(v4l.Config{
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
		Settings: cfg.Camera.Settings(),
		Settle:   cfg.Camera.Settle.D(),
	})
}
