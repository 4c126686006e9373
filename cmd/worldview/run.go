package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/worldview"
	"github.com/gogpu/worldview/config"
	"github.com/gogpu/worldview/gpu"
	"github.com/gogpu/worldview/render"
	"github.com/gogpu/worldview/sequence"
)

// eventBacklog bounds the consumer notification channel. Producers never
// block on it; a full channel just coalesces redraws.
const eventBacklog = 64

// producerFunc runs one artifact producer until ctx is cancelled.
type producerFunc func(ctx context.Context, seq sequence.Sequencer) error

// run wires the GPU context, table, producer and consumer together and
// blocks until SIGINT/SIGTERM or a producer failure.
func run(cfg config.Config, producer producerFunc) error {
	if err := setupLogging(cfg); err != nil {
		return err
	}

	var filter *regexp.Regexp
	if cfg.Filter != "" {
		re, err := regexp.Compile(cfg.Filter)
		if err != nil {
			return fmt.Errorf("bad filter: %w", err)
		}
		filter = re
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The GPU context comes up before any producer starts, so ingestion
	// never races device initialization.
	gctx, err := gpu.New()
	if err != nil {
		return err
	}
	defer gctx.Close()

	events := make(chan worldview.Event, eventBacklog)
	table := sequence.NewReplace(gctx.Adapter(), filter, events)
	renderer := render.NewRenderer(gctx, table)
	defer renderer.Destroy()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return producer(ctx, table)
	})
	g.Go(func() error {
		return consume(ctx, cfg, renderer, events)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consume drains change notifications. With a snapshot directory
// configured it renders one frame per notification; otherwise the events
// only surface in the debug log.
func consume(ctx context.Context, cfg config.Config, renderer *render.Renderer, events <-chan worldview.Event) error {
	log := worldview.Logger()
	frame := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			log.Debug("consume: table changed", "kind", ev.Kind.String(), "key", ev.Key.String())
			if cfg.SnapshotDir == "" {
				continue
			}
			pixels, err := renderer.Frame(uint32(cfg.FrameWidth), uint32(cfg.FrameHeight))
			if err != nil {
				log.Warn("consume: frame failed", "error", err)
				continue
			}
			path := filepath.Join(cfg.SnapshotDir, fmt.Sprintf("frame-%06d.png", frame))
			if err := writePNG(path, pixels, cfg.FrameWidth, cfg.FrameHeight); err != nil {
				log.Warn("consume: snapshot failed", "path", path, "error", err)
				continue
			}
			frame++
		}
	}
}

// writePNG converts BGRA pixels to an NRGBA image and writes it.
func writePNG(path string, bgra []byte, w, h int) error {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+3 < len(bgra); i += 4 {
		img.Pix[i] = bgra[i+2]
		img.Pix[i+1] = bgra[i+1]
		img.Pix[i+2] = bgra[i]
		img.Pix[i+3] = bgra[i+3]
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
