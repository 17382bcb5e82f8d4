package curlingcam

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"time"

	"github.com/brutella/hc/log"
	"github.com/nfnt/resize"
	"github.com/patrickmn/go-cache"

	"github.com/johnpoole/glencoe-curling-camera-capture/backend"
)

// Snapshotter serves scaled copies of the last published frame.
type Snapshotter struct {
	path      string
	snapCache *cache.Cache
}

// NewSnapshotter returns a snapshotter reading the published frame at path.
func NewSnapshotter(path string) *Snapshotter {
	return &Snapshotter{
		path: path,
		// how long a scaled snapshot is kept
		snapCache: cache.New(10*time.Second, 30*time.Second),
	}
}

// Snapshot returns the last published frame scaled to width, keeping the
// aspect ratio. The height is only part of the cache key; HomeKit asks for
// sizes matching the camera anyway.
func (s *Snapshotter) Snapshot(width, height uint) (*image.Image, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%dx%d-%s", width, height, backend.ETag(fi))
	if img, found := s.snapCache.Get(key); found {
		log.Debug.Println("Return a cached snapshot")
		return img.(*image.Image), nil
	}

	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, err
	}
	if width > 0 && uint(img.Bounds().Dx()) != width {
		img = resize.Resize(width, 0, img, resize.Lanczos3)
	}

	s.snapCache.Set(key, &img, cache.DefaultExpiration)
	return &img, nil
}
