package output

import "encoding/json"

// JSONFormatter renders the result exactly as the HTTP API would.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders the report's result as JSON.
func (f *JSONFormatter) FormatReport(report *Report) (string, error) {
	if report == nil || report.Result == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(report.Result, "", "  ")
	} else {
		data, err = json.Marshal(report.Result)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
