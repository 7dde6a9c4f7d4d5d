package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/framecrop/internal/utils"
	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/cropper"
	"github.com/menta2k/framecrop/pkg/geometry"
	"github.com/menta2k/framecrop/pkg/preview"
	"github.com/menta2k/framecrop/pkg/store"
	"github.com/menta2k/framecrop/pkg/types"
)

func newCaptureCmd() *cobra.Command {
	var src sourceFlags
	var insetsFlag, id, output string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture one frame, crop it and store it",
		Long: `Capture one frame from the selected source, crop it by the saved insets
(or --insets) and store it in the artifact directory. Passing --id replaces
a stored screenshot; a failed capture leaves it untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			track, stop, err := src.open(ctx, cli.logger)
			if err != nil {
				return err
			}
			defer stop()

			engine := cli.engine(nil)
			var img types.CompressedImage
			if insetsFlag != "" {
				insets, err := parseInsets(insetsFlag)
				if err != nil {
					return err
				}
				img, err = engine.CaptureAndCrop(ctx, track, insets)
				if err != nil {
					return err
				}
			} else {
				img, err = engine.CaptureWithSettings(ctx, track)
				if err != nil {
					return err
				}
			}

			if output != "" {
				if err := utils.WriteFileAtomic(output, img.Data, 0o644); err != nil {
					return err
				}
				fmt.Printf("%s (%dx%d, %s)\n", output, img.Width, img.Height, utils.FormatFileSize(int64(img.Len())))
				return nil
			}

			if id == "" {
				id = store.NewArtifactID()
			}
			if err := cli.artifacts.Put(id, img); err != nil {
				return err
			}
			fmt.Printf("%s %s (%dx%d, %s)\n", id, cli.artifacts.Path(id, img.Format),
				img.Width, img.Height, utils.FormatFileSize(int64(img.Len())))
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&insetsFlag, "insets", "", "crop insets as top,right,bottom,left (default: saved settings)")
	cmd.Flags().StringVar(&id, "id", "", "artifact id to replace")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of the artifact store")
	return cmd
}

func newCropCmd() *cobra.Command {
	var insetsFlag, outDir, suffix string
	var jobs int

	cmd := &cobra.Command{
		Use:   "crop [files or directories...]",
		Short: "Apply crop insets to existing image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			insets, err := cli.settings.Load()
			if err != nil {
				return err
			}
			if insetsFlag != "" {
				if insets, err = parseInsets(insetsFlag); err != nil {
					return err
				}
			}

			files, err := utils.ListImageFiles(args...)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no image files found")
			}
			if err := utils.EnsureDir(outDir); err != nil {
				return err
			}

			codecCfg := cli.cfg.CodecSettings()
			applier := cropper.NewWithConfig(codec.NewWithConfig(codecCfg))
			var done atomic.Int32

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(jobs)
			for _, file := range files {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					buf, err := codec.LoadCompressed(file)
					if err != nil {
						return err
					}
					out, err := applier.ApplyCropToBuffer(buf, insets)
					if err != nil {
						return fmt.Errorf("%s: %w", file, err)
					}
					dst := utils.GenerateOutputFilename(file, outDir, suffix, out.Format)
					if err := utils.WriteFileAtomic(dst, out.Data, 0o644); err != nil {
						return err
					}
					done.Add(1)
					cli.logger.Debug("Cropped", "input", file, "output", dst, "width", out.Width, "height", out.Height)
					return nil
				})
			}
			err = g.Wait()
			fmt.Printf("cropped %d/%d files into %s\n", done.Load(), len(files), outDir)
			return err
		},
	}
	cmd.Flags().StringVar(&insetsFlag, "insets", "", "crop insets as top,right,bottom,left (default: saved settings)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "output directory")
	cmd.Flags().StringVar(&suffix, "suffix", "_cropped", "output filename suffix")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "files cropped in parallel")
	return cmd
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the saved crop insets",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved insets as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			insets, err := cli.settings.Load()
			if err != nil {
				return err
			}
			return printJSON(insets)
		},
	}

	set := &cobra.Command{
		Use:   "set top,right,bottom,left",
		Short: "Save new insets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			insets, err := parseInsets(args[0])
			if err != nil {
				return err
			}
			if err := cli.settings.Save(insets); err != nil {
				return err
			}
			return printJSON(insets.NonNegative())
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved insets and return to the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.settings.Reset(); err != nil {
				return err
			}
			insets, err := cli.settings.Load()
			if err != nil {
				return err
			}
			return printJSON(insets)
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

func newMapCmd() *cobra.Command {
	var videoFlag, containerFlag string

	sizes := func() (types.Size, types.Size, error) {
		video, err := parseSize(videoFlag)
		if err != nil {
			return types.Size{}, types.Size{}, err
		}
		container, err := parseSize(containerFlag)
		if err != nil {
			return types.Size{}, types.Size{}, err
		}
		return video, container, nil
	}

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Convert between native insets and editor display rectangles",
	}
	cmd.PersistentFlags().StringVar(&videoFlag, "video", "1920x1080", "native video size")
	cmd.PersistentFlags().StringVar(&containerFlag, "container", "960x540", "editor container size")

	toDisplay := &cobra.Command{
		Use:   "to-display top,right,bottom,left",
		Short: "Map insets to a display rectangle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			video, container, err := sizes()
			if err != nil {
				return err
			}
			insets, err := parseInsets(args[0])
			if err != nil {
				return err
			}
			return printJSON(geometry.InsetsToDisplayRect(insets, video, container))
		},
	}

	toInsets := &cobra.Command{
		Use:   "to-insets x y width height",
		Short: "Map a display rectangle to insets",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			video, container, err := sizes()
			if err != nil {
				return err
			}
			var v [4]float64
			for i, a := range args {
				if _, err := fmt.Sscan(a, &v[i]); err != nil {
					return fmt.Errorf("invalid number %q", a)
				}
			}
			rect := types.DisplayRect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
			return printJSON(geometry.DisplayRectToInsets(rect, video, container))
		},
	}

	cmd.AddCommand(toDisplay, toInsets)
	return cmd
}

func newSuggestCmd() *cobra.Command {
	var src sourceFlags
	var backend string
	var save bool

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose crop insets for a captured frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := cli.suggester(ctx, backend)
			if err != nil {
				return err
			}
			track, stop, err := src.open(ctx, cli.logger)
			if err != nil {
				return err
			}
			defer stop()

			sug, err := cli.engine(s).Suggest(ctx, track)
			if err != nil {
				return err
			}
			if err := printJSON(sug); err != nil {
				return err
			}
			if !save {
				return nil
			}
			if !sug.Found() {
				return fmt.Errorf("nothing to save: no crop suggested")
			}
			return cli.settings.Save(sug.Insets)
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "suggestion backend: border, saliency, ollama or llamacpp (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "save the suggested insets")
	return cmd
}

// fileSurface writes every presented frame as a PNG until limit frames were
// written, then reports itself closed.
type fileSurface struct {
	dir     string
	limit   int
	encoder *codec.Encoder

	mu      sync.Mutex
	written int
}

func (s *fileSurface) Present(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written >= s.limit {
		return preview.ErrSurfaceClosed
	}
	path := filepath.Join(s.dir, fmt.Sprintf("preview_%03d.png", s.written))
	if err := s.encoder.SaveImage(img, path); err != nil {
		return err
	}
	s.written++
	return nil
}

func newPreviewCmd() *cobra.Command {
	var src sourceFlags
	var frames int
	var outDir, insetsFlag string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Run the live preview and write a few sample frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			if frames < 1 {
				return fmt.Errorf("--frames must be positive")
			}
			if err := utils.EnsureDir(outDir); err != nil {
				return err
			}
			ctx := cmd.Context()
			track, stop, err := src.open(ctx, cli.logger)
			if err != nil {
				return err
			}
			defer stop()

			surface := &fileSurface{
				dir:     outDir,
				limit:   frames,
				encoder: codec.NewWithConfig(codec.Config{Format: codec.FormatPNG}),
			}
			r, err := cli.engine(nil).NewPreview(track, surface)
			if err != nil {
				return err
			}
			if insetsFlag != "" {
				insets, err := parseInsets(insetsFlag)
				if err != nil {
					return err
				}
				r.SetInsets(insets)
			}

			if err := r.Start(ctx); err != nil {
				return err
			}
			select {
			case <-r.Done():
			case <-ctx.Done():
			}
			r.Stop()

			st := r.Stats()
			fmt.Printf("wrote %d preview frames (%dx%d) to %s, %d ticks skipped\n",
				surface.written, st.Width, st.Height, outDir, st.Skipped)
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().IntVarP(&frames, "frames", "n", 5, "number of frames to write")
	cmd.Flags().StringVarP(&outDir, "out", "o", "preview", "output directory")
	cmd.Flags().StringVar(&insetsFlag, "insets", "", "crop insets as top,right,bottom,left (default: saved settings)")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
