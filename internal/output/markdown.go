package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a report as a Markdown section.
type MarkdownFormatter struct{}

// FormatReport renders a report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *Report) (string, error) {
	if report == nil || report.Result == nil {
		return "", nil
	}
	r := report.Result

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s post\n\n", r.Platform.DisplayName()))
	sb.WriteString(fmt.Sprintf("**Topic**: %s\n\n", escapeMarkdownInline(report.Topic)))

	if r.Success {
		for _, line := range strings.Split(r.Post(), "\n") {
			sb.WriteString("> " + line + "\n")
		}
	} else {
		sb.WriteString(fmt.Sprintf("**Error**: %s\n", escapeMarkdownInline(r.Message())))
	}

	sb.WriteString(fmt.Sprintf("\n_Processed in %s_\n", seconds(r)))
	return sb.String(), nil
}

func escapeMarkdownInline(value string) string {
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "*", "\\*", "_", "\\_")
	return strings.TrimSpace(replacer.Replace(value))
}
