// Package output renders generation results for the CLI.
package output

import (
	"fmt"
	"strings"

	"github.com/postsmith/postsmith/internal/post"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Report pairs a result with the request that produced it.
type Report struct {
	Topic  string                 `json:"topic"`
	Result *post.GenerationResult `json:"result"`
}

// Formatter renders reports.
type Formatter interface {
	FormatReport(report *Report) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func statusLabel(r *post.GenerationResult) string {
	if r.Success {
		return "generated"
	}
	return "failed"
}

func seconds(r *post.GenerationResult) string {
	return fmt.Sprintf("%.2fs", r.ProcessingTime)
}
