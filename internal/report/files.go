package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/executor"
	"github.com/yuya-takeyama/strict-dedupe/pkg/planner"
)

// RunResult represents the actual execution results
type RunResult struct {
	Files   []ResultFile  `json:"files" yaml:"files"`
	Errors  []ErrorFile   `json:"errors" yaml:"errors"`
	Summary ResultSummary `json:"summary" yaml:"summary"`
}

type ResultFile struct {
	Action string `json:"action" yaml:"action"` // "moved", "renamed", "skipped"
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

type ErrorFile struct {
	Action string `json:"action" yaml:"action"` // "move", "rename"
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Code   string `json:"code" yaml:"code"`
	Error  string `json:"error" yaml:"error"`
}

type ResultSummary struct {
	Moved   int `json:"moved" yaml:"moved"`
	Renamed int `json:"renamed" yaml:"renamed"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`
}

// NewRunResult converts executor results into their file form.
func NewRunResult(results []executor.Result) RunResult {
	out := RunResult{
		Files:  []ResultFile{},
		Errors: []ErrorFile{},
	}

	for _, r := range results {
		switch r.Status {
		case executor.StatusFailed:
			msg := ""
			if r.Error != nil {
				msg = r.Error.Error()
			}
			out.Errors = append(out.Errors, ErrorFile{
				Action: string(r.Action.Kind),
				Source: r.Action.Source,
				Target: r.Action.Destination,
				Code:   string(errors.GetErrorCode(r.Error)),
				Error:  msg,
			})
			out.Summary.Failed++
			continue
		case executor.StatusSkipped:
			out.Summary.Skipped++
			out.Files = append(out.Files, ResultFile{Action: "skipped", Source: r.Action.Source, Target: r.Action.Destination})
			continue
		}

		action := "moved"
		if r.Action.Kind == planner.ActionRename {
			action = "renamed"
			out.Summary.Renamed++
		} else {
			out.Summary.Moved++
		}
		out.Files = append(out.Files, ResultFile{Action: action, Source: r.Action.Source, Target: r.Action.Destination})
	}
	return out
}

// WritePlan writes plan to path as YAML for .yaml/.yml files and as JSON
// otherwise.
func WritePlan(path string, plan *planner.Plan) error {
	return writeFile(path, plan)
}

// WriteResult writes the outcome of an apply run, formatted like WritePlan.
func WriteResult(path string, results []executor.Result) error {
	return writeFile(path, NewRunResult(results))
}

func writeFile(path string, v interface{}) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
