package headless

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/frametree/pkg/presenter"
	"github.com/entrhq/frametree/pkg/registry"
)

// ArtifactWriter handles writing execution artifacts
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// WriteAll writes all artifact formats
func (w *ArtifactWriter) WriteAll(summary *ExecutionSummary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteExecutionJSON(summary); err != nil {
		return fmt.Errorf("failed to write execution JSON: %w", err)
	}

	if err := w.WriteSummaryMarkdown(summary); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}

	return nil
}

// WriteExecutionJSON writes the full execution summary, trees included, as JSON
func (w *ArtifactWriter) WriteExecutionJSON(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "execution.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write execution JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# Frametree Headless Execution Summary\n\n")
	if summary.StartURL != "" {
		md.WriteString(fmt.Sprintf("**Page:** %s\n\n", summary.StartURL))
	}
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))

	md.WriteString("## Result\n\n")
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	} else {
		md.WriteString("✅ **Success**\n\n")
	}

	for _, s := range summary.Sessions {
		md.WriteString(fmt.Sprintf("## Session %s\n\n", s.ID))
		if len(s.Tree) == 0 {
			md.WriteString(presenter.NoFramesMessage + "\n\n")
			continue
		}
		md.WriteString("```\n")
		if err := presenter.RenderText(&md, s.Tree); err != nil {
			return fmt.Errorf("failed to render session %s: %w", s.ID, err)
		}
		md.WriteString("```\n\n")
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Polls:** %d\n", summary.Metrics.Polls))
	md.WriteString(fmt.Sprintf("- **Failed Polls:** %d\n", summary.Metrics.FailedPolls))
	md.WriteString(fmt.Sprintf("- **Frames:** %d\n", summary.Metrics.Frames))

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

// ExecutionSummary contains a complete summary of headless execution
type ExecutionSummary struct {
	StartURL  string           `json:"start_url,omitempty"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Sessions  []SessionSummary `json:"sessions"`
	Metrics   ExecutionMetrics `json:"metrics"`
}

// SessionSummary is the last tree observed for one session
type SessionSummary struct {
	ID     registry.SessionID      `json:"id"`
	Frames int                     `json:"frames"`
	Tree   []*presenter.VisualNode `json:"tree"`
}

// ExecutionMetrics contains execution metrics
type ExecutionMetrics struct {
	Polls       int `json:"polls"`
	FailedPolls int `json:"failed_polls"`
	Frames      int `json:"frames"`
}
