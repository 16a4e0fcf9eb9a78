// Command loopreel-encode turns a directory of numbered PNG frames into a
// looping GIF or WebP animation.
package main

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/loopreel/animcore"
	"github.com/loopreel/animcore/internal/pngsource"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "loopreel-encode: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		format     string
		width      int
		height     int
		quality    string
		fps        int
		loopCount  int
		loopOnce   bool
		minDelayMS int
		out        string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "loopreel-encode <frames-dir>",
		Short: "Encode a directory of PNG frames into a GIF or WebP animation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				With().Timestamp().Logger()
			if !verbose {
				logger = logger.Level(zerolog.InfoLevel)
			}

			entries, err := pngsource.Dir(args[0], uint64(1000/max1(fps)))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no PNG frames found in %s", args[0])
			}

			if width == 0 || height == 0 {
				srcW, srcH, err := firstFrameDims(entries[0].Path)
				if err != nil {
					return err
				}
				if width == 0 {
					width = srcW
				}
				if height == 0 {
					height = srcH
				}
			}

			opts, err := buildOptions(format, width, height, quality, loopCount, loopOnce, minDelayMS)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			job := animcore.NewJob(ctx, animcore.ProgressFunc(func(e animcore.ProgressEvent) {
				logger.Debug().Str("stage", string(e.Stage)).Int("frame", e.FrameIndex).Msg("progress")
			}), logger)

			src := &sourceAdapter{src: pngsource.New(entries)}
			artifact, err := animcore.Encode(src, opts, job)
			if err != nil {
				return fmt.Errorf("encoding: %w", err)
			}

			outPath := out
			if outPath == "" {
				outPath = defaultOutputName(opts.Format)
			}
			if err := os.WriteFile(outPath, artifact.Data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}

			logger.Info().
				Str("path", outPath).
				Int("frames", artifact.FrameCount).
				Int("bytes", artifact.ByteSize).
				Uint64("duration_ms", artifact.DurationMS).
				Msg("wrote animation")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "gif", "output format: gif or webp")
	flags.IntVar(&width, "width", 0, "output width in pixels (0 keeps source width)")
	flags.IntVar(&height, "height", 0, "output height in pixels (0 keeps source height)")
	flags.StringVar(&quality, "quality", "medium", "quality tier: low, medium, or high")
	flags.IntVar(&fps, "fps", 15, "frame rate to assume for frames with no timestamp suffix")
	flags.IntVar(&loopCount, "loop", 0, "repeat count, 0 for infinite")
	flags.BoolVar(&loopOnce, "loop-once", false, "play once instead of repeating")
	flags.IntVar(&minDelayMS, "min-delay-ms", 20, "minimum per-frame delay in milliseconds")
	flags.StringVar(&out, "out", "", "output file path (default out.gif or out.webp)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func buildOptions(format string, width, height int, quality string, loopCount int, loopOnce bool, minDelayMS int) (animcore.Options, error) {
	var f animcore.Format
	switch format {
	case "gif":
		f = animcore.FormatGIF
	case "webp":
		f = animcore.FormatWebP
	default:
		return animcore.Options{}, fmt.Errorf("unknown format %q (want gif or webp)", format)
	}

	var q animcore.Quality
	switch quality {
	case "low":
		q = animcore.QualityLow
	case "high":
		q = animcore.QualityHigh
	default:
		q = animcore.QualityMedium
	}

	loop := animcore.LoopInfinite()
	switch {
	case loopOnce:
		loop = animcore.LoopOnce()
	case loopCount > 0:
		loop = animcore.LoopN(uint16(loopCount))
	}

	return animcore.Options{
		Format:     f,
		Width:      width,
		Height:     height,
		Quality:    q,
		Loop:       loop,
		MinDelayMS: minDelayMS,
	}, nil
}

func defaultOutputName(f animcore.Format) string {
	if f == animcore.FormatWebP {
		return "out.webp"
	}
	return "out.gif"
}

// firstFrameDims reads just the header of the first frame to size the
// output canvas when --width/--height are left at their zero defaults.
func firstFrameDims(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("reading dimensions from %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// sourceAdapter bridges pngsource.Source (which has no dependency on the
// root package) to animcore.FrameSource.
type sourceAdapter struct {
	src *pngsource.Source
}

func (a *sourceAdapter) Next() (animcore.RgbaFrame, bool, error) {
	f, ok, err := a.src.Next()
	if err != nil || !ok {
		return animcore.RgbaFrame{}, ok, err
	}
	return animcore.RgbaFrame{
		Width:       f.Width,
		Height:      f.Height,
		Pix:         f.Pix,
		TimestampMS: f.TimestampMS,
	}, true, nil
}
