package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/brutella/hc/log"

	"github.com/johnpoole/glencoe-curling-camera-capture/publish"
)

// Acquirer writes one frame to dst.
type Acquirer interface {
	Acquire(ctx context.Context, dst string) error
}

// Scorer returns the difference between two frames on disk.
type Scorer interface {
	Score(candidate, reference string) (float64, error)
}

// Observer is told about every frame the loop published.
type Observer interface {
	Published(p Publication)
}

// Reason tells why a frame qualified for publication.
type Reason string

const (
	ReasonFirst     Reason = "first"
	ReasonChanged   Reason = "changed"
	ReasonDiffError Reason = "diff-error"
	ReasonForced    Reason = "forced"
)

// Slots are the filesystem locations the loop works with. Published holds
// the canonical slot first, followed by any mirrors.
type Slots struct {
	Scratch   string
	Published []string
}

// Config controls the loop.
type Config struct {
	Slots     Slots
	Interval  time.Duration
	Threshold float64
}

// Publication describes a published frame.
type Publication struct {
	Time   time.Time
	Reason Reason
	Score  float64
	Frame  string
	Slots  []string
}

// Iteration is the outcome of one pass through the loop.
type Iteration struct {
	AcquireErr error
	Score      float64
	ScoreErr   error
	Qualified  bool
	Reason     Reason
	// PublishErrs maps a published slot to its error; slots that were
	// published successfully are absent.
	PublishErrs map[string]error
	CleanupErr  error
}

// Published reports whether at least one slot received the frame.
func (it Iteration) Published(slots int) bool {
	return it.Qualified && len(it.PublishErrs) < slots
}

// Loop is the capture loop. Create it with New.
type Loop struct {
	cfg       Config
	acquirer  Acquirer
	scorer    Scorer
	observers []Observer

	publish func(src, dst string) error
	trigger chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New returns a loop which is not yet running.
func New(cfg Config, a Acquirer, s Scorer, observers ...Observer) *Loop {
	return &Loop{
		cfg:       cfg,
		acquirer:  a,
		scorer:    s,
		observers: observers,
		publish:   publish.File,
		trigger:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Trigger wakes a sleeping loop and forces the next frame to be published
// regardless of its score. Triggers received while one is pending are merged.
func (l *Loop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Start runs the loop on its own goroutine until ctx is done.
func (l *Loop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Wait blocks until Run returned or the timeout elapsed. It reports whether
// the loop finished.
func (l *Loop) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-l.done:
		return true
	case <-t.C:
		return false
	}
}

// Run executes iterations until ctx is done. The stop signal is honoured at
// the top of each iteration and while sleeping; an iteration in progress is
// completed first.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })

	log.Info.Printf("capture loop started, interval %s threshold %.2f", l.cfg.Interval, l.cfg.Threshold)

	forced := false
	for {
		if ctx.Err() != nil {
			break
		}

		l.RunOnce(ctx, forced)

		forced = l.sleep(ctx)
	}

	log.Info.Println("capture loop stopped")
}

// sleep waits for the interval. It returns true when woken by a trigger.
func (l *Loop) sleep(ctx context.Context) bool {
	t := time.NewTimer(l.cfg.Interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-l.trigger:
		return true
	case <-t.C:
	}

	// a trigger that arrived during the iteration is not lost
	select {
	case <-l.trigger:
		return true
	default:
		return false
	}
}

// RunOnce performs one acquire, evaluate, publish and cleanup pass. A forced
// pass publishes any acquired frame.
func (l *Loop) RunOnce(ctx context.Context, forced bool) Iteration {
	var it Iteration
	scratch := l.cfg.Slots.Scratch

	// an acquire in progress is allowed to finish during shutdown
	if it.AcquireErr = l.acquirer.Acquire(context.WithoutCancel(ctx), scratch); it.AcquireErr != nil {
		log.Info.Println("skip iteration:", it.AcquireErr)
	} else {
		l.evaluate(&it, forced)
		if it.Qualified {
			l.publishAll(&it)
		}
	}

	it.CleanupErr = cleanup(scratch)
	if it.CleanupErr != nil {
		log.Debug.Println(it.CleanupErr)
	}

	return it
}

// evaluate decides whether the scratch frame qualifies for publication.
func (l *Loop) evaluate(it *Iteration, forced bool) {
	reference := l.reference()

	switch {
	case forced:
		it.Qualified, it.Reason = true, ReasonForced
	case !exists(reference):
		it.Qualified, it.Reason = true, ReasonFirst
	default:
		it.Score, it.ScoreErr = l.scorer.Score(l.cfg.Slots.Scratch, reference)
		if it.ScoreErr != nil {
			// a corrupt reference must not freeze publication
			log.Info.Println("publish without score:", it.ScoreErr)
			it.Qualified, it.Reason = true, ReasonDiffError
		} else if it.Score >= l.cfg.Threshold {
			it.Qualified, it.Reason = true, ReasonChanged
		}
	}

	log.Debug.Printf("score %.2f threshold %.2f qualified %v (%s)", it.Score, l.cfg.Threshold, it.Qualified, it.Reason)
}

// publishAll publishes the scratch frame to every slot. A failing slot does
// not prevent the others.
func (l *Loop) publishAll(it *Iteration) {
	var published []string
	for _, dst := range l.cfg.Slots.Published {
		if err := l.publish(l.cfg.Slots.Scratch, dst); err != nil {
			if it.PublishErrs == nil {
				it.PublishErrs = make(map[string]error)
			}
			it.PublishErrs[dst] = err
			log.Info.Println(err)
			continue
		}
		published = append(published, dst)
	}

	if len(published) == 0 {
		return
	}

	log.Info.Printf("published frame (%s, score %.2f)", it.Reason, it.Score)
	p := Publication{
		Time:   time.Now(),
		Reason: it.Reason,
		Score:  it.Score,
		Frame:  published[0],
		Slots:  published,
	}
	for _, o := range l.observers {
		o.Published(p)
	}
}

func (l *Loop) reference() string {
	if len(l.cfg.Slots.Published) == 0 {
		return ""
	}
	return l.cfg.Slots.Published[0]
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// cleanup removes the scratch frame. A missing file is not an error.
func cleanup(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &CleanupError{Path: path, Err: err}
	}
	return nil
}

// CleanupError reports a scratch frame that could not be removed. The next
// acquire overwrites it anyway.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
