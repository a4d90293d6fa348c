package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Brownie44l1/id-validator/internal/validator"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

type fileReport struct {
	Path   string
	Result validator.ValidationResult
	Err    error
}

func classifyFiles(model *validator.Model, paths []string, maxBytes int64, logger *zap.Logger) []fileReport {
	reports := make([]fileReport, 0, len(paths))
	for _, path := range paths {
		report := fileReport{Path: path}

		data, err := readImage(path, maxBytes)
		if err != nil {
			report.Err = err
		} else {
			logger.Debug("received file", zap.String("path", path), zap.Int("bytes", len(data)))
			report.Result, report.Err = model.Validate(data)
		}

		if report.Err != nil {
			logger.Warn("validation failed", zap.String("path", path), zap.Error(report.Err))
		} else {
			logger.Info("validation finished",
				zap.String("path", path),
				zap.String("label", report.Result.Label),
				zap.Float32("score", report.Result.Score))
		}
		reports = append(reports, report)
	}
	return reports
}

// readImage reads at most maxBytes+1 bytes so oversized files are rejected
// by the size check without being loaded whole.
func readImage(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

type reporter interface {
	report(w io.Writer, reports []fileReport) error
}

type tableReporter struct{}

func (tableReporter) report(w io.Writer, reports []fileReport) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Label", "Score", "Error"})
	for _, r := range reports {
		if r.Err != nil {
			table.Append([]string{r.Path, "", "", r.Err.Error()})
			continue
		}
		table.Append([]string{r.Path, r.Result.Label, fmt.Sprintf("%.4f", r.Result.Score), ""})
	}
	table.Render()
	return nil
}

type jsonReporter struct{}

type jsonLine struct {
	File  string   `json:"file"`
	Label string   `json:"label,omitempty"`
	Score *float32 `json:"score,omitempty"`
	Error string   `json:"error,omitempty"`
}

func (jsonReporter) report(w io.Writer, reports []fileReport) error {
	enc := json.NewEncoder(w)
	for _, r := range reports {
		line := jsonLine{File: r.Path}
		if r.Err != nil {
			line.Error = r.Err.Error()
		} else {
			score := r.Result.Score
			line.Label, line.Score = r.Result.Label, &score
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
