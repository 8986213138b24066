package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	pptxtemplate "github.com/VantageDataChat/GoPPTTemplate"
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// config is the parsed command line.
type config struct {
	JobPath   string
	Input     string
	Output    string
	DataPath  string
	Pictures  []string
	DPI       float64
	LogFormat string
	LogLevel  string
	Validate  bool
	Strict    bool
}

// pictureFlags collects repeated -picture original=replacement flags.
type pictureFlags []string

func (p *pictureFlags) String() string { return strings.Join(*p, ",") }

func (p *pictureFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected original=replacement, got %q", v)
	}
	*p = append(*p, v)
	return nil
}

// parseArgs processes command-line arguments. It returns the config, whether
// the program should exit cleanly, or an ExitError.
func parseArgs(args []string, output io.Writer) (*config, bool, error) {
	flagSet := flag.NewFlagSet("pptxrender", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprintf(output, "\npptxrender %s - fill {{ placeholders }} in a PowerPoint template.\n", pptxtemplate.Version)
		fmt.Fprint(output, `

Usage:
  pptxrender -job render.hcl
  pptxrender -in template.pptx -out result.pptx [-data model.json] [-picture old.png=new.png]

Options:
`)
		flagSet.PrintDefaults()
	}

	var pictures pictureFlags
	jobFlag := flagSet.String("job", "", "Path to an HCL job file.")
	inFlag := flagSet.String("in", "", "Template .pptx file.")
	outFlag := flagSet.String("out", "", "Output .pptx file.")
	dataFlag := flagSet.String("data", "", "JSON file holding the data model.")
	flagSet.Var(&pictures, "picture", "Picture replacement as original=replacement. May be repeated.")
	dpiFlag := flagSet.Float64("dpi", 0, "DPI assumed for images without resolution metadata. 0 uses the default.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	validateFlag := flagSet.Bool("validate", true, "Check the output document structure after rendering.")
	strictFlag := flagSet.Bool("strict", false, "Exit with code 3 when any placeholder is left unrendered.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if *jobFlag == "" && *inFlag == "" {
		flagSet.Usage()
		return nil, true, nil
	}
	if *jobFlag != "" && (*inFlag != "" || *outFlag != "" || *dataFlag != "" || len(pictures) > 0) {
		return nil, false, &ExitError{Code: 2, Message: "-job cannot be combined with -in, -out, -data or -picture"}
	}
	if *jobFlag == "" && *outFlag == "" {
		return nil, false, &ExitError{Code: 2, Message: "-out is required with -in"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	return &config{
		JobPath:   *jobFlag,
		Input:     *inFlag,
		Output:    *outFlag,
		DataPath:  *dataFlag,
		Pictures:  pictures,
		DPI:       *dpiFlag,
		LogFormat: logFormat,
		LogLevel:  logLevel,
		Validate:  *validateFlag,
		Strict:    *strictFlag,
	}, false, nil
}
