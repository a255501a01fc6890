package records

import (
	"strconv"
	"strings"
)

// LatestMetrics extracts vital-sign readings from the last entry of an
// ordered log sequence. Entries look like "<date>: <body>"; recognized
// markers in the body are "Heart rate" (int), "BP" (string) and
// "Temp"/"Temperature" (float). Parsing is deliberately best-effort: a
// malformed entry or unparsable value yields no metric and no error.
func LatestMetrics(entries []string) map[string]interface{} {
	metrics := map[string]interface{}{}
	if len(entries) == 0 {
		return metrics
	}

	last := entries[len(entries)-1]
	_, body, found := strings.Cut(last, ": ")
	if !found {
		return metrics
	}

	if _, after, ok := strings.Cut(body, "Heart rate"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(after)); err == nil {
			metrics["heart_rate"] = v
		}
	}
	if _, after, ok := strings.Cut(body, "BP"); ok {
		metrics["bp"] = strings.TrimSpace(after)
	}
	if strings.Contains(body, "Temp") || strings.Contains(body, "Temperature") {
		var digits strings.Builder
		for _, ch := range body {
			if (ch >= '0' && ch <= '9') || ch == '.' {
				digits.WriteRune(ch)
			}
		}
		if v, err := strconv.ParseFloat(digits.String(), 64); err == nil {
			metrics["temp"] = v
		}
	}

	return metrics
}
