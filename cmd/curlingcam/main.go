package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strings"

	"github.com/brutella/hc"
	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/log"

	curlingcam "github.com/johnpoole/glencoe-curling-camera-capture"
	"github.com/johnpoole/glencoe-curling-camera-capture/backend"
	"github.com/johnpoole/glencoe-curling-camera-capture/config"
	"github.com/johnpoole/glencoe-curling-camera-capture/diff"
	"github.com/johnpoole/glencoe-curling-camera-capture/ffmpeg"
	"github.com/johnpoole/glencoe-curling-camera-capture/pipeline"

	"net/http"
	_ "net/http/pprof"
)

// configPath finds the -config argument before the other flags are bound,
// since their defaults come from the file.
func configPath(args []string) string {
	for i, a := range args {
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func main() {
	path := configPath(os.Args[1:])
	cfg, err := config.Load(path)
	if err != nil {
		log.Info.Fatalf("%v", err)
	}

	flag.String("config", path, "Path to YAML configuration file")
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	if cfg.Verbose {
		log.Debug.Enable()
		ffmpeg.EnableVerboseLogging()
	}

	if err := cfg.Validate(); err != nil {
		log.Info.Fatalf("invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.ImageDir, 0755); err != nil {
		log.Info.Fatalf("cannot create image directory: %v", err)
	}

	var observers []pipeline.Observer

	var history *backend.History
	if cfg.History.Enabled {
		history, err = backend.OpenHistory(cfg.HistoryFile(), cfg.History.MaxEntries)
		if err != nil {
			log.Info.Fatalf("cannot open history: %v", err)
		}
		observers = append(observers, history)
	}

	var camera *curlingcam.Camera
	if cfg.HomeKit.Enabled {
		camera = curlingcam.NewCamera(accessory.Info{
			Name:             cfg.HomeKit.Name,
			FirmwareRevision: "1.0",
			SerialNumber:     "glencoe",
			Manufacturer:     "Glencoe Curling Club",
			Model:            "CurlingCam",
		})
		observers = append(observers, camera)
	}

	grabber := ffmpeg.New(ffmpeg.Config{
		Binary:        cfg.Capture.Binary,
		InputFormat:   cfg.Capture.InputFormat,
		VideoFilename: cfg.Capture.Device,
		Width:         cfg.Capture.Width,
		Height:        cfg.Capture.Height,
		Quality:       cfg.Capture.Quality,
		Timeout:       cfg.Capture.Timeout,
	})

	loop := pipeline.New(pipeline.Config{
		Slots: pipeline.Slots{
			Scratch:   cfg.ScratchFile(),
			Published: []string{cfg.LastFile(), cfg.DisplayFile()},
		},
		Interval:  cfg.Capture.Interval,
		Threshold: cfg.Diff.Threshold,
	}, grabber, diff.NewScorer(cfg.Diff.Width), observers...)

	bk := backend.InitBackend(backend.Options{
		Addr:          cfg.HTTP.Addr,
		LastFile:      cfg.LastFile(),
		DisplayFile:   cfg.DisplayFile(),
		History:       history,
		Trigger:       loop.Trigger,
		WatchInterval: cfg.HTTP.WatchInterval,
	})

	// bind before anything runs, a busy port is fatal
	ln, err := bk.Listen()
	if err != nil {
		log.Info.Fatalf("cannot listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// configure homekit
	stopHomeKit := func() {}
	if camera != nil {
		t, err := hc.NewIPTransport(hc.Config{Pin: cfg.HomeKit.Pin, StoragePath: cfg.HomeKit.StoragePath}, camera.Accessory)
		if err != nil {
			log.Info.Panic(err)
		}

		// enable snapshot callback
		t.CameraSnapshotReq = curlingcam.NewSnapshotter(cfg.LastFile()).Snapshot

		go t.Start()
		stopHomeKit = func() { <-t.Stop() }
	}

	// instantiate and start the button used to force a capture
	b := curlingcam.InitButton(cfg.ButtonGPIO, bufio.NewScanner(os.Stdin), loop.Trigger)
	if cfg.ButtonGPIO >= 0 {
		go func() {
			if err := b.RunGPIO(ctx); err != nil {
				log.Info.Println("button:", err)
			}
		}()
	}
	if cfg.StdinTrigger {
		go b.RunStdin(ctx)
	}

	// enable pprof
	if cfg.Profile {
		log.Debug.Println("Start pprof at " + cfg.ProfileAddr)
		go http.ListenAndServe(cfg.ProfileAddr, nil)
	}

	loop.Start(ctx)

	// stop the loop first so that no frame is published while the web
	// service goes away
	stopped := make(chan struct{})
	hc.OnTermination(func() {
		log.Info.Println("Shutting down")
		cancel()
		if !loop.Wait(cfg.ShutdownTimeout) {
			log.Info.Printf("capture loop still busy after %s", cfg.ShutdownTimeout)
		}

		sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer scancel()
		if err := bk.StopWebService(sctx); err != nil {
			log.Info.Println("WebService:", err)
		}

		stopHomeKit()
		if history != nil {
			history.Close()
		}
		close(stopped)
	})

	// the web service runs on the main goroutine
	if err := bk.StartWebService(ln); err != nil {
		log.Info.Fatalf("WebService: %v", err)
	}
	<-stopped
}
