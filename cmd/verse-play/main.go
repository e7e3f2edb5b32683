package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-verse/audiothread"
	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/preset"
)

func main() {
	presetPath := flag.String("preset", "assets/presets/tone.json", "Preset JSON file path")
	duration := flag.Float64("duration", 0, "Stop after this many seconds (0 plays until interrupted)")
	channels := flag.Int("channels", 0, "Override the preset output channel count")
	bufferMS := flag.Int("buffer-ms", 50, "Driver buffer length in milliseconds")
	queue := flag.Int("queue", 8, "Rendered blocks buffered ahead of the driver")
	verbose := flag.Bool("v", false, "Log simulation events")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	g, err := preset.LoadJSON(*presetPath)
	if err != nil {
		die("Error loading preset %q: %v", *presetPath, err)
	}
	if *channels > 0 {
		g.Channels = *channels
	}
	b, err := preset.Build(g, graph.WithLogger(logger))
	if err != nil {
		die("Error building preset %q: %v", *presetPath, err)
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   g.SampleRate,
		ChannelCount: g.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(*bufferMS) * time.Millisecond,
	})
	if err != nil {
		die("Error opening audio device: %v", err)
	}
	<-ready

	ctx, stop := signal.NotifyContext(context.Background(), stopSignals...)
	defer stop()

	maxFrames := int(*duration * float64(g.SampleRate))
	blocks := make(chan []float32, max(*queue, 1))
	done := make(chan error, 1)
	go func() {
		done <- produce(ctx, b.Simulation, g.Channels, maxFrames, blocks, logger)
	}()

	player := otoCtx.NewPlayer(&streamer{blocks: blocks})
	player.Play()
	fmt.Printf("Playing %s at %d Hz, %d channels (Ctrl-C to stop)\n", *presetPath, g.SampleRate, g.Channels)

	if err := <-done; err != nil {
		fmt.Fprintf(os.Stderr, "render stopped: %v\n", err)
	}
	for ctx.Err() == nil && player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	if err := player.Close(); err != nil {
		die("Error closing player: %v", err)
	}
}

// produce renders blocks into out until maxFrames have been queued (never
// when maxFrames <= 0) or ctx ends. out is closed on return.
func produce(ctx context.Context, sim *graph.Simulation, channels, maxFrames int, out chan<- []float32, logger *slog.Logger) error {
	audiothread.BecomeAudioThread(logger)
	defer audiothread.UnbecomeAudioThread(logger)
	defer close(out)

	bs := sim.BlockSize()
	for frames := 0; maxFrames <= 0 || frames < maxFrames; frames += bs {
		block := make([]float32, bs*channels)
		if err := sim.GetBlock(channels, true, block); err != nil {
			return err
		}
		if maxFrames > 0 && frames+bs > maxFrames {
			block = block[:(maxFrames-frames)*channels]
		}
		select {
		case out <- block:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		}
	}
	return nil
}

// streamer serves queued blocks to the driver as little-endian float32.
type streamer struct {
	blocks  <-chan []float32
	pending []float32
}

func (s *streamer) Read(p []byte) (int, error) {
	n := 0
	for n+4 <= len(p) {
		if len(s.pending) == 0 {
			if n > 0 && len(s.blocks) == 0 {
				return n, nil
			}
			block, ok := <-s.blocks
			if !ok {
				if n == 0 {
					return 0, io.EOF
				}
				return n, nil
			}
			s.pending = block
			continue
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(s.pending[0]))
		s.pending = s.pending[1:]
		n += 4
	}
	return n, nil
}

// stopSignals end playback cleanly.
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
