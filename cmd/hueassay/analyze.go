package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/color"
	"github.com/ayusman/hueassay/internal/config"
	"github.com/ayusman/hueassay/internal/hook"
	"github.com/ayusman/hueassay/internal/region"
	"github.com/ayusman/hueassay/internal/report"
	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
)

// analyzeOptions are the flags of the analyze command.
type analyzeOptions struct {
	video      string
	reaction   region.Normalized
	background region.Normalized
	out        string
	interval   float64
	hooks      bool
}

func parseAnalyzeFlags(args []string, defaultInterval float64) (analyzeOptions, error) {
	var opts analyzeOptions
	var reaction, background string

	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.video, "video", "", "video file to analyze")
	fs.StringVar(&reaction, "reaction", "", "reaction region as normalized x,y,width,height")
	fs.StringVar(&background, "background", "", "background region as normalized x,y,width,height")
	fs.StringVar(&opts.out, "out", "", "CSV output file (default stdout)")
	fs.Float64Var(&opts.interval, "interval", defaultInterval, "seconds between samples")
	fs.BoolVar(&opts.hooks, "hooks", false, "run post-analysis hooks from the data directory")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.video == "" || reaction == "" || background == "" {
		return opts, errors.New("-video, -reaction and -background are required")
	}

	var err error
	if opts.reaction, err = region.Parse(reaction); err != nil {
		return opts, fmt.Errorf("-reaction: %w", err)
	}
	if opts.background, err = region.Parse(background); err != nil {
		return opts, fmt.Errorf("-background: %w", err)
	}
	return opts, nil
}

// analyze runs one headless analysis and writes the CSV to -out or stdout.
// A run that fails part way still writes the samples collected before the failure.
func analyze(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string, stdout io.Writer) error {
	opts, err := parseAnalyzeFlags(args, cfg.Interval)
	if err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}

	video, err := capture.OpenVideoFile(opts.video)
	if err != nil {
		return err
	}
	defer video.Close()

	engine := color.NewEngine()
	if err := engine.Init(ctx); err != nil {
		return err
	}

	samplerCfg := cfg.Sampler()
	samplerCfg.Interval = opts.interval

	var outcome session.Outcome
	sess := session.New(session.Config{
		Engine:   engine,
		Sampler:  samplerCfg,
		Logger:   log,
		OnFinish: func(o session.Outcome) { outcome = o },
	})

	if err := sess.LoadVideo(video); err != nil {
		return err
	}
	if err := sess.SetSamplerConfig(samplerCfg); err != nil {
		return err
	}
	if err := sess.SetRegion(region.KindReaction, opts.reaction); err != nil {
		return err
	}
	if err := sess.SetRegion(region.KindBackground, opts.background); err != nil {
		return err
	}

	series, runErr := sess.Run(ctx)

	if opts.out == "" {
		err = report.WriteCSV(stdout, series)
	} else {
		var f *os.File
		if f, err = os.Create(opts.out); err == nil {
			err = writeCSVAndClose(f, series)
		}
	}
	if err != nil {
		return errors.Join(runErr, err)
	}

	log.Info("analysis written",
		zap.String("state", string(outcome.State)),
		zap.Int("samples", len(series)),
		zap.String("out", opts.out),
	)

	if opts.hooks {
		hooks := hook.NewManager(cfg.HooksDir(), log)
		if err := hooks.Discover(); err != nil {
			return errors.Join(runErr, err)
		}
		d := hook.NewDispatcher(hooks, hook.NewExecutor(cfg.HookTimeout), log)
		for _, res := range d.Dispatch(ctx, hook.NewRequest(outcome, series)) {
			if res.Err != nil {
				runErr = errors.Join(runErr, fmt.Errorf("hook %s: %w", res.Hook, res.Err))
			}
		}
	}
	return runErr
}

// writeCSVAndClose writes series to f and closes it. A failed close is an
// error: buffered rows may not have reached the file.
func writeCSVAndClose(f io.WriteCloser, series sampler.TimeSeries) error {
	err := report.WriteCSV(f, series)
	if cerr := f.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("closing csv: %w", cerr))
	}
	return err
}
