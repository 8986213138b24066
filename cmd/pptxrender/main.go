// Command pptxrender fills a .pptx template from a data model.
//
//	pptxrender -job render.hcl
//	pptxrender -in template.pptx -out result.pptx -data model.json
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	pptxtemplate "github.com/VantageDataChat/GoPPTTemplate"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args, renders the job and prints the diagnostics to outW.
// Logs go to logW.
func run(outW, logW io.Writer, args []string) error {
	cfg, shouldExit, err := parseArgs(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)

	job, err := cfg.job()
	if err != nil {
		return err
	}
	logger.Info("rendering template", "input", job.Input, "output", job.Output, "pictures", len(job.Pictures))

	opts := pptxtemplate.DefaultOptions()
	opts.Logger = logger
	opts.Filters = cliFilters()
	if job.DPI > 0 {
		opts.DefaultDPI = job.DPI
	}

	r := pptxtemplate.NewRenderer(job.Model, job.Pictures, opts)
	diags, err := r.Process(job.Input, job.Output)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", job.Input, err)
	}

	if cfg.Validate {
		doc, err := pptxtemplate.Open(job.Output)
		if err != nil {
			return fmt.Errorf("failed to reopen %s: %w", job.Output, err)
		}
		verr := doc.Validate()
		doc.Close()
		if verr != nil {
			return verr
		}
	}

	if len(diags) > 0 {
		fmt.Fprintln(outW, diags.String())
	}
	logger.Info("template rendered", "output", job.Output, "diagnostics", len(diags))

	if cfg.Strict && len(diags) > 0 {
		return &ExitError{Code: 3, Message: fmt.Sprintf("%d placeholder(s) left unrendered", len(diags))}
	}
	return nil
}
