// Package pattern implements permission-pattern matching and inference
// (spec.md §4.C): the glob/regex rules that decide whether an allow/deny
// pattern from settings matches a given tool invocation, and the
// narrowest-pattern synthesis used when the engine must ask the user.
package pattern

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/internal/shellparse"
)

// Pattern is a parsed permission pattern: "ToolRegex(argument)" or "*".
type Pattern struct {
	Raw       string
	ToolRegex *regexp.Regexp
	Arg       string
	MatchAll  bool
}

// Parse splits raw at the first "(" and the last ")": the prefix is a
// regex applied to the tool name, and the argument region is interpreted
// per tool kind by Match. A bare "*" matches every tool and argument.
func Parse(raw string) (Pattern, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return Pattern{Raw: raw, MatchAll: true}, true
	}

	open := strings.Index(raw, "(")
	close := strings.LastIndex(raw, ")")
	if open < 0 || close < 0 || close < open {
		re, err := regexp.Compile("^" + raw + "$")
		if err != nil {
			return Pattern{}, false
		}
		return Pattern{Raw: raw, ToolRegex: re}, true
	}

	toolPart := raw[:open]
	arg := raw[open+1 : close]
	re, err := regexp.Compile("^" + toolPart + "$")
	if err != nil {
		return Pattern{}, false
	}
	return Pattern{Raw: raw, ToolRegex: re, Arg: arg}, true
}

// Match reports whether p matches a (toolName, input) invocation. cwd is
// not consulted: Bash compound parsing needs no working directory, and
// path escaping is not re-checked here (that is the permission engine's
// job).
func (p Pattern) Match(toolName string, input map[string]any, cwd string) bool {
	if p.MatchAll {
		return true
	}
	if p.ToolRegex == nil || !p.ToolRegex.MatchString(toolName) {
		return false
	}
	if p.Arg == "" || p.Arg == "*" {
		return true
	}

	switch toolName {
	case "Bash":
		return matchBash(p.Arg, stringField(input, "command"))
	case "WebFetch":
		return matchWebFetch(p.Arg, stringField(input, "url"))
	case "WebSearch":
		return matchWebSearch(p.Arg, stringField(input, "query"), stringField(input, "url"))
	case "Read", "Write", "Edit", "Glob", "Grep", "NotebookEdit":
		return matchFileGlob(p.Arg, stringField(input, "file_path"), stringField(input, "path"), stringField(input, "pattern"))
	default:
		return matchFileGlob(p.Arg, stringField(input, "file_path"), stringField(input, "path"), "")
	}
}

func stringField(input map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := input[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// matchBash applies argRegex as a regex over the full command after
// compound parsing: in a pipeline, the pattern must match at least one
// part, with every other part required to be a safe filter.
func matchBash(argRegex, command string) bool {
	re, err := regexp.Compile(argRegex)
	if err != nil {
		return false
	}

	parts := shellparse.Parse(command)
	if len(parts) == 0 {
		return re.MatchString(command)
	}

	i := 0
	for i < len(parts) {
		p := parts[i]
		if p.Type != shellparse.PartPipeline {
			if re.MatchString(p.Text) {
				return true
			}
			i++
			continue
		}
		matched, othersSafe := false, true
		j := i
		for j < len(parts) && parts[j].Type == shellparse.PartPipeline {
			if re.MatchString(parts[j].Text) {
				matched = true
			} else if !shellparse.IsSafeFilterPart(parts[j].Text) {
				othersSafe = false
			}
			j++
		}
		if matched && othersSafe {
			return true
		}
		i = j
	}
	return false
}

// matchFileGlob applies a glob over the first non-empty candidate path:
// "**" spans "/", "*" does not, "?" matches a single character.
func matchFileGlob(glob string, candidates ...string) bool {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if globMatch(glob, c) {
			return true
		}
	}
	return false
}

func globMatch(glob, path string) bool {
	re := globToRegexp(glob)
	return re.MatchString(path)
}

func globToRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '.', '+', '(', ')', '|', '^', '$', '[', ']', '{', '}', '\\':
			b.WriteString(regexp.QuoteMeta(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile("$^")
	}
	return re
}

// matchWebFetch interprets arg as "domain:x" (host equality or
// subdomain-of-x) or, lacking that prefix, a regex over the URL.
func matchWebFetch(arg, rawURL string) bool {
	if host, ok := strings.CutPrefix(arg, "domain:"); ok {
		u, err := url.Parse(rawURL)
		if err != nil {
			return false
		}
		h := u.Hostname()
		return h == host || strings.HasSuffix(h, "."+host)
	}
	re, err := regexp.Compile(arg)
	if err != nil {
		return false
	}
	return re.MatchString(rawURL)
}

// matchWebSearch interprets arg as "query:x" (regex on the query) or,
// lacking that prefix, a regex on the URL (currently unused by callers).
func matchWebSearch(arg, query, rawURL string) bool {
	if q, ok := strings.CutPrefix(arg, "query:"); ok {
		re, err := regexp.Compile(q)
		if err != nil {
			return false
		}
		return re.MatchString(query)
	}
	re, err := regexp.Compile(arg)
	if err != nil {
		return false
	}
	return re.MatchString(rawURL)
}
