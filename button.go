package curlingcam

import (
	"bufio"
	"context"
	"time"

	"github.com/brutella/hc/log"
	rpi "github.com/nathan-osman/go-rpigpio"
)

// pin reads the level of an input pin, true meaning high.
type pin struct {
	read  func() (bool, error)
	close func()
}

var openPin = func(gpio int) (*pin, error) {
	p, err := rpi.OpenPin(gpio, rpi.IN)
	if err != nil {
		return nil, err
	}
	return &pin{
		read: func() (bool, error) {
			v, err := p.Read()
			return v == rpi.HIGH, err
		},
		close: func() { p.Close() },
	}, nil
}

// Button forces a capture when pressed.
type Button struct {
	gpio         int
	stdinScanner *bufio.Scanner
	onPressed    func()
	pollInterval time.Duration
}

func InitButton(gpio int, scanner *bufio.Scanner, onPressed func()) *Button {
	return &Button{
		gpio:         gpio,
		stdinScanner: scanner,
		onPressed:    onPressed,
		pollInterval: 100 * time.Millisecond,
	}
}

// RunGPIO polls the button pin until ctx is done.
func (b *Button) RunGPIO(ctx context.Context) error {
	p, err := openPin(b.gpio)
	if err != nil {
		return err
	}
	defer p.close()

	c := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// we have an external pull-up
		// we avoid bouncing
		high, _ := p.read()
		if !high {
			c = 2
		}

		if c > 0 {
			c--
			if c == 0 && high {
				log.Info.Println(">>> Capture button pressed <<<")
				b.onPressed()
			}
		}
		time.Sleep(b.pollInterval)
	}
}

// RunStdin forces a capture for every non-empty line on stdin. It returns
// when stdin is closed or, after the next line, when ctx is done.
func (b *Button) RunStdin(ctx context.Context) {
	for b.stdinScanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if len(b.stdinScanner.Text()) != 0 {
			log.Info.Println(">>> Capture requested on stdin <<<")
			b.onPressed()
		}
	}
}
