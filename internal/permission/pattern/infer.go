package pattern

import (
	"net/url"
	"path"
	"strings"

	"github.com/conductorhq/conductor/internal/shellparse"
)

// Infer produces the narrowest reusable pattern for (toolName, input), for
// use as the suggested pattern accompanying an AskUser verdict (spec.md
// §4.C).
func Infer(toolName string, input map[string]any) string {
	switch toolName {
	case "Bash":
		return inferBash(stringField(input, "command"))
	case "WebFetch":
		return inferWebFetch(stringField(input, "url"))
	case "Write", "Edit", "Read", "NotebookEdit":
		return inferFileTool(toolName, stringField(input, "file_path", "path"))
	default:
		if toolName == "" {
			return "Tool(*)"
		}
		return toolName + "(*)"
	}
}

// inferBash parses the compound command, picks the first non-cd part,
// and keeps its leading tokens up to the first flag or path-like
// argument.
func inferBash(command string) string {
	parts := shellparse.Parse(command)
	var first string
	for _, p := range parts {
		if p.Type == shellparse.PartCd {
			continue
		}
		first = p.Text
		break
	}
	if first == "" {
		return "Bash(*)"
	}

	tokens := strings.Fields(first)
	var kept []string
	for _, t := range tokens {
		if strings.HasPrefix(t, "-") || strings.Contains(t, "/") {
			break
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return "Bash(*)"
	}
	return "Bash(" + strings.Join(kept, " ") + ":*)"
}

// inferFileTool takes dirname(path) and produces "<Tool>(<dir>/**)"; a
// path with no directory component ⇒ "<Tool>(**)".
func inferFileTool(toolName, filePath string) string {
	if filePath == "" {
		return toolName + "(**)"
	}
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" {
		return toolName + "(**)"
	}
	return toolName + "(" + dir + "/**)"
}

func inferWebFetch(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "WebFetch(*)"
	}
	return "WebFetch(domain:" + u.Hostname() + ")"
}
