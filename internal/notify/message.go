package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/gexdex/internal/record"
)

const maxListedErrors = 3

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(result *record.BatchResult, duration time.Duration) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Chains: %d\n", result.Total)
	fmt.Fprintf(&sb, "Recorded: %d\n", result.Success)
	fmt.Fprintf(&sb, "Not Found: %d\n", result.NotFound)
	fmt.Fprintf(&sb, "Bytes: %d\n", result.Bytes)
	fmt.Fprintf(&sb, "Duration: %s", duration.Round(time.Second))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body listing the
// first few task errors.
func FormatFailureMessage(result *record.BatchResult, duration time.Duration, err error) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Chains: %d\n", result.Total)
	fmt.Fprintf(&sb, "Recorded: %d\n", result.Success)
	fmt.Fprintf(&sb, "Failed: %d\n", result.Failed)
	fmt.Fprintf(&sb, "Duration: %s", duration.Round(time.Second))

	if err != nil {
		fmt.Fprintf(&sb, "\n\nError: %v", err)
	}

	if len(result.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		for i, e := range result.Errors {
			if i == maxListedErrors {
				fmt.Fprintf(&sb, "... and %d more errors", len(result.Errors)-maxListedErrors)
				break
			}
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}

	return sb.String()
}
