// Command framedisplay shows the display-mirror frame on the framebuffer and
// redraws it whenever the capture service replaces it.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/brutella/hc"
	"github.com/brutella/hc/log"

	"github.com/johnpoole/glencoe-curling-camera-capture/display"
	"github.com/johnpoole/glencoe-curling-camera-capture/watch"
)

func main() {
	imagePath := flag.String("image", "images/hdmi.jpg", "display-mirror frame to show")
	device := flag.String("fb", "/dev/fb0", "framebuffer device")
	interval := flag.Duration("interval", 500*time.Millisecond, "how often the frame is checked for changes")
	verbose := flag.Bool("verbose", false, "Verbose logging")
	flag.Parse()

	if *verbose {
		log.Debug.Enable()
	}

	fb, err := display.OpenFramebuffer(*device)
	if err != nil {
		log.Info.Fatalf("cannot open framebuffer: %v", err)
	}
	log.Info.Printf("drawing %s on %s (%dx%d, %d bpp)", *imagePath, fb.Device, fb.Width, fb.Height, fb.BPP)

	ctx, cancel := context.WithCancel(context.Background())
	hc.OnTermination(func() {
		log.Info.Println("Shutting down")
		cancel()
	})

	err = watch.New(*imagePath, *interval).Run(ctx, func(ch watch.Change) {
		log.Debug.Println("frame changed at", ch.ModTime)
		// an unreadable frame is skipped, the next replacement redraws
		if err := fb.ShowFile(ch.Path); err != nil {
			log.Info.Println("display:", err)
		}
	})
	if err != nil {
		log.Info.Fatalf("watch: %v", err)
	}
}
