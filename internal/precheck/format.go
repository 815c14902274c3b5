package precheck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatRunResult renders the check results the way doctor prints them.
func FormatRunResult(result RunResult) string {
	var b strings.Builder
	failed := 0
	for _, r := range result.Results {
		tag := " ok "
		if !r.Passed {
			tag = "FAIL"
			failed++
		}
		fmt.Fprintf(&b, "[%s] %-20s %s\n", tag, r.Name, r.Message)
	}
	if failed > 0 {
		fmt.Fprintf(&b, "\n%d of %d check(s) failed (%s)\n", failed, len(result.Results), result.Duration)
	} else {
		fmt.Fprintf(&b, "\nAll %d check(s) passed (%s)\n", len(result.Results), result.Duration)
	}
	return b.String()
}

// FormatRunResultJSON returns the result as indented JSON for --json.
func FormatRunResultJSON(result RunResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("precheck: json marshal: %w", err)
	}
	return string(data), nil
}
