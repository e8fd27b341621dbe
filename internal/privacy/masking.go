package privacy

import (
	"strconv"
	"strings"
)

// MaskID masks a numeric user or chat identifier showing only the last 4
// digits. Example: 1234567890 -> "******7890"
func MaskID(id int64) string {
	if id == 0 {
		return ""
	}
	return maskString(strconv.FormatInt(id, 10), 4)
}

// MaskMessageID masks a platform message identifier while keeping enough of
// the tail to correlate log lines. Example: "1755801600123456789" -> "***...6789"
func MaskMessageID(messageID string) string {
	return maskString(messageID, 4)
}

// MaskConfirmationKey masks the identifiers embedded in a confirmation key
// while preserving its shape. Example: "1234567890_987654321_556677" ->
// "******7890_*****4321_**6677"
func MaskConfirmationKey(key string) string {
	if key == "" {
		return ""
	}
	parts := strings.Split(key, "_")
	for i, part := range parts {
		parts[i] = maskString(part, 4)
	}
	return strings.Join(parts, "_")
}

// maskString masks a string showing only the last n characters. Strings no
// longer than n are masked entirely.
func maskString(s string, keepLast int) string {
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}
