package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	pptxtemplate "github.com/VantageDataChat/GoPPTTemplate"
)

// Job is everything one render needs.
type Job struct {
	Input    string
	Output   string
	Model    map[string]any
	Pictures []pptxtemplate.PictureReplacement
	DPI      float64
}

// hclJobFile is the decoding target for a job file:
//
//	input     = "template.pptx"
//	output    = "out/result.pptx"
//	data_file = "model.json"
//	model = {
//	  name = "John"
//	}
//	picture {
//	  original    = "model.jpg"
//	  replacement = "image.jpg"
//	}
type hclJobFile struct {
	Input    string        `hcl:"input"`
	Output   string        `hcl:"output"`
	DataFile string        `hcl:"data_file,optional"`
	Model    cty.Value     `hcl:"model,optional"`
	DPI      float64       `hcl:"dpi,optional"`
	Pictures []*hclPicture `hcl:"picture,block"`
}

type hclPicture struct {
	Original    string `hcl:"original"`
	Replacement string `hcl:"replacement"`
}

// job builds the Job described by the command line.
func (c *config) job() (*Job, error) {
	if c.JobPath != "" {
		j, err := loadJob(c.JobPath)
		if err != nil {
			return nil, err
		}
		if c.DPI > 0 {
			j.DPI = c.DPI
		}
		return j, nil
	}

	j := &Job{Input: c.Input, Output: c.Output, DPI: c.DPI, Model: map[string]any{}}
	if c.DataPath != "" {
		m, err := readDataFile(c.DataPath)
		if err != nil {
			return nil, err
		}
		j.Model = m
	}
	for _, p := range c.Pictures {
		original, replacement, _ := strings.Cut(p, "=")
		j.Pictures = append(j.Pictures, pptxtemplate.PictureReplacement{Original: original, Replacement: replacement})
	}
	return j, nil
}

// loadJob parses an HCL job file. Relative paths are resolved against the
// directory of the job file. Keys in model override keys read from
// data_file. The variable env exposes the process environment.
func loadJob(path string) (*Job, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, diags)
	}

	var parsed hclJobFile
	diags = gohcl.DecodeBody(file.Body, evalContext(), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode job file %s: %w", path, diags)
	}

	dir := filepath.Dir(path)
	job := &Job{
		Input:  resolve(dir, parsed.Input),
		Output: resolve(dir, parsed.Output),
		DPI:    parsed.DPI,
		Model:  map[string]any{},
	}

	if parsed.DataFile != "" {
		m, err := readDataFile(resolve(dir, parsed.DataFile))
		if err != nil {
			return nil, err
		}
		job.Model = m
	}

	if !parsed.Model.IsNull() {
		if !parsed.Model.Type().IsObjectType() && !parsed.Model.Type().IsMapType() {
			return nil, fmt.Errorf("job file %s: model must be an object, got %s", path, parsed.Model.Type().FriendlyName())
		}
		native, err := ctyToNative(parsed.Model)
		if err != nil {
			return nil, fmt.Errorf("job file %s: model: %w", path, err)
		}
		for k, v := range native.(map[string]any) {
			job.Model[k] = v
		}
	}

	for _, p := range parsed.Pictures {
		job.Pictures = append(job.Pictures, pptxtemplate.PictureReplacement{
			Original:    resolve(dir, p.Original),
			Replacement: resolve(dir, p.Replacement),
		})
	}
	return job, nil
}

func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(env) > 0 {
		envVal = cty.MapVal(env)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
	}
}

// readDataFile reads a JSON object from path.
func readDataFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
