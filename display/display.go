// Package display draws the display-mirror frame on a Linux framebuffer.
//
// Frames are scaled to fit the screen keeping their aspect ratio and
// centered on black.
package display

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// Framebuffer is a Linux framebuffer device, written with plain file writes.
type Framebuffer struct {
	Device string
	Width  int
	Height int
	Stride int
	BPP    int
}

// OpenFramebuffer reads the geometry of device (e.g. /dev/fb0) from sysfs.
func OpenFramebuffer(device string) (*Framebuffer, error) {
	sys := filepath.Join("/sys/class/graphics", filepath.Base(device))

	size, err := readSys(sys, "virtual_size")
	if err != nil {
		return nil, err
	}
	wh := strings.Split(size, ",")
	if len(wh) != 2 {
		return nil, fmt.Errorf("unexpected virtual_size %q", size)
	}

	fb := &Framebuffer{Device: device}
	if fb.Width, err = strconv.Atoi(wh[0]); err != nil {
		return nil, err
	}
	if fb.Height, err = strconv.Atoi(wh[1]); err != nil {
		return nil, err
	}

	bpp, err := readSys(sys, "bits_per_pixel")
	if err != nil {
		return nil, err
	}
	if fb.BPP, err = strconv.Atoi(bpp); err != nil {
		return nil, err
	}

	fb.Stride = fb.Width * fb.BPP / 8
	if stride, err := readSys(sys, "stride"); err == nil {
		if v, err := strconv.Atoi(stride); err == nil {
			fb.Stride = v
		}
	}

	if fb.BPP != 16 && fb.BPP != 32 {
		return nil, fmt.Errorf("unsupported framebuffer depth %d", fb.BPP)
	}
	return fb, nil
}

func readSys(dir, name string) (string, error) {
	b, err := ioutil.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ShowFile decodes the image at path and shows it.
func (fb *Framebuffer) ShowFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}
	return fb.Show(img)
}

// Show letterboxes img to the screen and writes it to the device.
func (fb *Framebuffer) Show(img image.Image) error {
	screen := Letterbox(img, fb.Width, fb.Height)

	f, err := os.OpenFile(fb.Device, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteAt(Encode(screen, fb.BPP, fb.Stride), 0)
	return err
}

// Letterbox scales img into a w×h black canvas keeping its aspect ratio.
func Letterbox(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	sb := img.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return dst
	}

	scale := min(float64(w)/float64(sb.Dx()), float64(h)/float64(sb.Dy()))
	sw := int(float64(sb.Dx()) * scale)
	sh := int(float64(sb.Dy()) * scale)
	x0 := (w - sw) / 2
	y0 := (h - sh) / 2

	draw.ApproxBiLinear.Scale(dst, image.Rect(x0, y0, x0+sw, y0+sh), img, sb, draw.Src, nil)
	return dst
}

// Encode converts img to the framebuffer pixel layout: BGRX for 32 bits per
// pixel, RGB565 little endian for 16.
func Encode(img *image.RGBA, bpp, stride int) []byte {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := make([]byte, stride*h)

	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		row := out[y*stride:]
		for x := 0; x < w; x++ {
			r, g, b := src[4*x], src[4*x+1], src[4*x+2]
			switch bpp {
			case 32:
				row[4*x] = b
				row[4*x+1] = g
				row[4*x+2] = r
				row[4*x+3] = 0xff
			case 16:
				v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
				row[2*x] = byte(v)
				row[2*x+1] = byte(v >> 8)
			}
		}
	}
	return out
}
