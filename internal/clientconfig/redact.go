package clientconfig

import (
	"strings"
)

// Redact masks the value of every password key with asterisks of the same
// length, for logging a rendered configuration.
func Redact(document string) string {
	lines := strings.Split(document, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "password") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		if key != "password" {
			continue
		}
		value := strings.TrimSpace(line[eq+1:])
		length := len(value)
		if len(value) >= 2 {
			first, last := value[0], value[len(value)-1]
			if (first == '"' || first == '\'') && first == last {
				length = len(value) - 2
			}
		}
		lines[i] = line[:eq] + `= "` + strings.Repeat("*", length) + `"`
	}
	return strings.Join(lines, "\n")
}
