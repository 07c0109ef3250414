package adapter

import (
	"regexp"

	"github.com/andrejcermak/ood-core-extension/pkg/models"
)

// messagePattern pulls `"message": "..."` values out of build log output.
// Provisioner errors surface as JSON fragments embedded in otherwise
// free-form log lines, so this is a substring scan, not a JSON parse.
var messagePattern = regexp.MustCompile(`"message":\s*"([^"]+)"`)

// ExtractErrorMessages scans build log entries for embedded error messages.
// Each returned group holds the messages found in a single log entry, in
// input order. Entries with empty output or no matches contribute nothing.
// The result is never nil.
func ExtractErrorMessages(entries []models.BuildLogEntry) [][]string {
	groups := [][]string{}
	for _, entry := range entries {
		if entry.Output == "" {
			continue
		}
		matches := messagePattern.FindAllStringSubmatch(entry.Output, -1)
		if len(matches) == 0 {
			continue
		}
		messages := make([]string, 0, len(matches))
		for _, m := range matches {
			messages = append(messages, m[1])
		}
		groups = append(groups, messages)
	}
	return groups
}
