package workflow

import "regexp"

// filePatterns are tried in order; the first pattern that matches
// anything wins. Each must capture (path, content).
var filePatterns = []*regexp.Regexp{
	// FILENAME: path + fenced block, the format the coder is asked for.
	regexp.MustCompile("(?s)FILENAME:\\s*(\\S+)\\s*\\n```(?:\\w+)?\\n(.*?)```"),
	// File: path variant.
	regexp.MustCompile("(?s)File:\\s*(\\S+)\\s*\\n```(?:\\w+)?\\n(.*?)```"),
	// Markdown header naming the file.
	regexp.MustCompile("(?s)###\\s*(\\S+\\.\\w+)\\s*\\n```(?:\\w+)?\\n(.*?)```"),
	// Backtick-quoted filename before the block.
	regexp.MustCompile("(?s)`(\\S+\\.\\w+)`\\s*\\n```(?:\\w+)?\\n(.*?)```"),
}

// ExtractFiles parses stage output for file markers followed by
// fenced code blocks and returns a path → content map. A later block
// for the same path replaces the earlier one.
func ExtractFiles(output string) map[string]string {
	for _, pattern := range filePatterns {
		matches := pattern.FindAllStringSubmatch(output, -1)
		if len(matches) == 0 {
			continue
		}
		files := make(map[string]string, len(matches))
		for _, m := range matches {
			files[m[1]] = trimTrailingNewline(m[2])
		}
		return files
	}
	return nil
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
