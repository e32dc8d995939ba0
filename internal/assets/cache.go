package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/audio"
	"reelsmith/internal/logging"
	"reelsmith/internal/sequencer"
	"reelsmith/internal/services"
)

// DefaultConcurrency bounds parallel loads during Preload.
const DefaultConcurrency = 4

// ErrFrozen is returned by Preload once the cache has been populated.
var ErrFrozen = errors.New("asset cache is frozen")

// Element is a loaded visual.
type Element interface {
	Source() string
	Close() error
}

// Options configure a Cache.
type Options struct {
	// Width and Height are the canvas size; stills are pre-scaled for it and
	// clip frames are decoded at it.
	Width      int
	Height     int
	SampleRate int
	Opener     StreamOpener
	Audio      AudioExtractor
	// Concurrency bounds parallel loads; 0 means DefaultConcurrency.
	Concurrency int
	// Blocking makes FrameAt wait for the decoder. Used for offline renders.
	Blocking bool
	Logger   *slog.Logger
	// FirstFrameTimeout bounds the wait for a clip window's first frame;
	// 0 means DefaultFirstFrameTimeout.
	FirstFrameTimeout time.Duration
}

// Cache holds one element per unique source. It is populated once by
// Preload and read-only afterwards.
type Cache struct {
	opts   Options
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	elements map[string]Element
	frozen   atomic.Bool
	closed   atomic.Bool
}

// NewCache returns an empty cache.
func NewCache(opts Options) *Cache {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "assets"),
		ctx:      ctx,
		cancel:   cancel,
		elements: make(map[string]Element),
	}
}

type loadRequest struct {
	asset    sequencer.MediaAsset
	hasAudio bool
}

// uniqueRequests keeps the first asset per source, in order. A source has
// audio if any of its assets says so.
func uniqueRequests(list []sequencer.MediaAsset) []loadRequest {
	index := make(map[string]int)
	var out []loadRequest
	for _, a := range list {
		if i, ok := index[a.Source]; ok {
			out[i].hasAudio = out[i].hasAudio || a.HasEmbeddedAudio
			continue
		}
		index[a.Source] = len(out)
		out = append(out, loadRequest{asset: a, hasAudio: a.HasEmbeddedAudio})
	}
	return out
}

// Preload loads every unique source in list, at most Concurrency at a time.
// A source that has not loaded within timeout fails the whole preload with
// services.ErrAssetUnavailable. On success the cache is frozen.
func (c *Cache) Preload(ctx context.Context, list []sequencer.MediaAsset, timeout time.Duration) error {
	if c.frozen.Load() {
		return ErrFrozen
	}
	if c.closed.Load() {
		return errors.New("asset cache is closed")
	}
	requests := uniqueRequests(list)
	start := time.Now()
	loadCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(loadCtx)
	g.SetLimit(c.opts.Concurrency)
	for _, req := range requests {
		g.Go(func() error {
			el, err := c.loadBounded(gctx, req)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return services.Wrap(services.ErrAssetUnavailable, "assets", "preload",
						fmt.Sprintf("%s did not load within %s", req.asset.Source, timeout), err)
				}
				return services.Wrap(services.ErrAssetUnavailable, "assets", "preload", req.asset.Source, err)
			}
			c.mu.Lock()
			c.elements[req.asset.Source] = el
			c.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.releaseAll()
		return err
	}
	c.frozen.Store(true)
	c.logger.Info("assets preloaded",
		logging.Int("unique_sources", len(requests)),
		logging.Int("requested", len(list)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// loadBounded gives up on a load when ctx ends even if the load itself
// ignores cancellation.
func (c *Cache) loadBounded(ctx context.Context, req loadRequest) (Element, error) {
	type result struct {
		el  Element
		err error
	}
	done := make(chan result, 1)
	go func() {
		el, err := c.load(ctx, req)
		done <- result{el, err}
	}()
	select {
	case r := <-done:
		return r.el, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.el != nil {
				_ = r.el.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context, req loadRequest) (Element, error) {
	if !req.asset.IsVideo() {
		return loadImage(ctx, req.asset.Source, c.opts.Width, c.opts.Height)
	}
	if _, err := os.Stat(req.asset.Source); err != nil {
		return nil, err
	}
	v := &VideoElement{
		source:            req.asset.Source,
		ctx:               c.ctx,
		opener:            c.opts.Opener,
		width:             c.opts.Width,
		height:            c.opts.Height,
		blocking:          c.opts.Blocking,
		logger:            c.logger,
		firstFrameTimeout: c.opts.FirstFrameTimeout,
		rate:              c.opts.SampleRate,
		windows:           make(map[Window]*windowStream),
	}
	if req.hasAudio && c.opts.Audio != nil {
		buf, err := c.opts.Audio.ExtractAudio(ctx, req.asset.Source)
		if err != nil {
			return nil, fmt.Errorf("embedded audio: %w", err)
		}
		if c.opts.SampleRate > 0 {
			buf = audio.Resample(buf, c.opts.SampleRate)
		}
		v.samples = buf.Samples
		v.rate = buf.SampleRate
	}
	return v, nil
}

// Frozen reports whether Preload has completed.
func (c *Cache) Frozen() bool { return c.frozen.Load() }

// Len is the number of loaded elements, one per unique source.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elements)
}

// Element returns the element loaded for source.
func (c *Cache) Element(source string) (Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	el, ok := c.elements[source]
	return el, ok
}

// Image returns the still loaded for source.
func (c *Cache) Image(source string) (*ImageElement, bool) {
	el, ok := c.Element(source)
	if !ok {
		return nil, false
	}
	img, ok := el.(*ImageElement)
	return img, ok
}

// Video returns the clip loaded for source.
func (c *Cache) Video(source string) (*VideoElement, bool) {
	el, ok := c.Element(source)
	if !ok {
		return nil, false
	}
	v, ok := el.(*VideoElement)
	return v, ok
}

// Videos lists loaded clips ordered by source.
func (c *Cache) Videos() []*VideoElement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*VideoElement
	for _, el := range c.elements {
		if v, ok := el.(*VideoElement); ok {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b *VideoElement) int { return strings.Compare(a.source, b.source) })
	return out
}

// Close stops all decoding and drops every element. Safe to call twice.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	return c.releaseAll()
}

func (c *Cache) releaseAll() error {
	c.mu.Lock()
	elements := c.elements
	c.elements = make(map[string]Element)
	c.mu.Unlock()
	var errs []error
	for _, el := range elements {
		if err := el.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", el.Source(), err))
		}
	}
	return errors.Join(errs...)
}
