package httputil

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// idleWatch cancels a request when it is not touched for d.
type idleWatch struct {
	d     time.Duration
	timer *time.Timer
	fired atomic.Bool
}

func watchIdle(d time.Duration, cancel context.CancelFunc) *idleWatch {
	w := &idleWatch{d: d}
	w.timer = time.AfterFunc(d, func() {
		w.fired.Store(true)
		cancel()
	})
	return w
}

func (w *idleWatch) touch() { w.timer.Reset(w.d) }
func (w *idleWatch) stop()  { w.timer.Stop() }

// explain replaces err with a retryable ErrStalled error when the watch
// cancelled the request.
func (w *idleWatch) explain(err error) error {
	if err == nil || !w.fired.Load() {
		return err
	}
	return &RetryableError{Err: fmt.Errorf("%w: %w: no data for %s", ErrNetwork, ErrStalled, w.d)}
}

// idleBody resets the watch on every read that delivers data.
type idleBody struct {
	io.ReadCloser
	watch  *idleWatch
	cancel context.CancelFunc
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.watch.touch()
	}
	if err != nil && err != io.EOF {
		err = b.watch.explain(err)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.watch.stop()
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
