package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/bridge"
	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/link"
	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/UnendingLoop/BgRemover/internal/mwlogger"
	"github.com/UnendingLoop/BgRemover/internal/processor"
	"github.com/UnendingLoop/BgRemover/internal/repository"
	"github.com/UnendingLoop/BgRemover/internal/service"
	"github.com/UnendingLoop/BgRemover/internal/source"
	"github.com/UnendingLoop/BgRemover/internal/storage/localstorage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// RemoveOptions holds the flags of the remove command
type RemoveOptions struct {
	Tolerance    float64
	OutDir       string
	Timeout      time.Duration
	MaxSide      int
	FetchTimeout time.Duration
}

var removeOpts RemoveOptions

var removeCmd = &cobra.Command{
	Use:   "remove <image>...",
	Short: "Remove the background of one or more images (paths or http(s) URLs)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemove(cmd.Context(), cmd.OutOrStdout(), args, removeOpts)
	},
}

func init() {
	removeCmd.Flags().Float64VarP(&removeOpts.Tolerance, "tolerance", "t", model.DefaultTolerance, "RGB distance still counted as background")
	removeCmd.Flags().StringVarP(&removeOpts.OutDir, "out", "o", ".", "Directory for result PNGs")
	removeCmd.Flags().DurationVar(&removeOpts.Timeout, "timeout", bridge.DefaultTimeout, "Time limit for a single image")
	removeCmd.Flags().IntVar(&removeOpts.MaxSide, "max-side", imageproc.DefaultMaxSide, "Longest side an image is downscaled to")
	removeCmd.Flags().DurationVar(&removeOpts.FetchTimeout, "fetch-timeout", 15*time.Second, "Time limit for downloading a remote image")
	rootCmd.AddCommand(removeCmd)
}

// runRemove processes inputs one by one and prints a result path per input, or "-" when there is none
func runRemove(ctx context.Context, out io.Writer, inputs []string, opts RemoveOptions) error {
	logger := newLogger()
	ctx = mwlogger.WithLogger(ctx, logger)

	store, err := localstorage.New(opts.OutDir)
	if err != nil {
		return fmt.Errorf("failed to prepare output dir: %w", err)
	}

	br := bridge.New(source.NewLoader(opts.FetchTimeout), store,
		bridge.WithTimeout(opts.Timeout),
		bridge.WithLogger(logger),
	)

	procCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	inproc := link.NewInProc(procCtx, processor.New(opts.MaxSide, logger), br.OnMessage, logger)
	defer func() { _ = inproc.Close() }()

	readyCtx, readyCancel := context.WithTimeout(ctx, 10*time.Second)
	defer readyCancel()
	if err := link.AwaitReady(readyCtx, inproc, 100*time.Millisecond); err != nil {
		return fmt.Errorf("raster processor did not start: %w", err)
	}
	br.Register(inproc)
	defer br.Unregister()

	svc := service.NewRemovalService(repository.NoopRemovalRepo{}, br, store, store, nil, model.DefaultTolerance, 2*opts.Timeout)

	var bar *progressbar.ProgressBar
	if len(inputs) > 1 {
		bar = progressbar.NewOptions(len(inputs),
			progressbar.OptionSetDescription("Removing backgrounds"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	failed := 0
	// по одному: новый запрос вытеснил бы текущий
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		ref, ok := svc.RemoveBackground(ctx, in, opts.Tolerance)
		if !ok {
			failed++
			ref = "-"
		}
		fmt.Fprintln(out, ref)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images produced no result", failed, len(inputs))
	}
	return nil
}
