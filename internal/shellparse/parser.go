// Package shellparse splits and classifies shell command strings the way
// the permission engine needs to: into sequenced parts (simple, cd, or
// pipeline members), without ever executing anything.
//
// It never shells out; it is purely lexical, mirroring the teacher's
// internal/exec safety helpers (regex-based validation, no subprocess
// spawned) adapted to the compound-command grammar spec.md §4.B defines.
package shellparse

import "strings"

// PartType classifies one segment of a parsed compound command.
type PartType string

const (
	// PartSimple is an ordinary command segment.
	PartSimple PartType = "simple"
	// PartCd is a segment whose first token is "cd".
	PartCd PartType = "cd"
	// PartPipeline is a segment that is one stage of a single-pipe
	// pipeline, never itself further split on && / || / ;.
	PartPipeline PartType = "pipelinePart"
)

// ParsedCommand is one segment produced by Parse.
type ParsedCommand struct {
	Text string
	Type PartType
}

// Parse splits cmd into top-level sequenced parts on unquoted "&&", "||",
// and ";", then splits each resulting part on unquoted single "|" (but not
// "||") into pipeline members. Quoted runs (single or double) are never
// split on. Empty input returns an empty slice.
func Parse(cmd string) []ParsedCommand {
	if strings.TrimSpace(cmd) == "" {
		return nil
	}

	segments := splitSequenced(cmd)

	var out []ParsedCommand
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		pipelineParts := splitPipeline(seg)
		if len(pipelineParts) == 1 {
			out = append(out, ParsedCommand{Text: pipelineParts[0], Type: classifyTop(pipelineParts[0])})
			continue
		}
		for _, p := range pipelineParts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			out = append(out, ParsedCommand{Text: p, Type: PartPipeline})
		}
	}
	return out
}

// classifyTop returns PartCd when text's first token is "cd", else
// PartSimple.
func classifyTop(text string) PartType {
	if firstToken(text) == "cd" {
		return PartCd
	}
	return PartSimple
}

// firstToken returns the first whitespace-delimited token of s.
func firstToken(s string) string {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s
	}
	return s[:i]
}

// splitSequenced splits on unquoted "&&", "||", and ";" at the top level.
func splitSequenced(cmd string) []string {
	return splitUnquoted(cmd, []string{"&&", "||", ";"})
}

// splitPipeline splits on unquoted single "|" that is not part of "||".
func splitPipeline(cmd string) []string {
	return splitUnquoted(cmd, []string{"|"})
}

// splitUnquoted scans cmd left to right tracking quote state, and splits on
// the first matching operator in ops at each unquoted position. Operators
// are tried longest-first so "||" is preferred over "|" when both are in
// ops (never simultaneously in this package, but keeps the helper honest).
func splitUnquoted(cmd string, ops []string) []string {
	var parts []string
	var cur strings.Builder

	var quote rune
	runes := []rune(cmd)
	i := 0
	for i < len(runes) {
		r := runes[i]

		if quote != 0 {
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
			i++
			continue
		}

		if r == '\'' || r == '"' {
			quote = r
			cur.WriteRune(r)
			i++
			continue
		}

		matched := false
		for _, op := range orderedByLengthDesc(ops) {
			n := len(op)
			if i+n <= len(runes) && string(runes[i:i+n]) == op {
				// "|" must not match the start of "||".
				if op == "|" && i+1 < len(runes) && runes[i+1] == '|' {
					continue
				}
				if op == "|" && i > 0 && runes[i-1] == '|' {
					continue
				}
				parts = append(parts, cur.String())
				cur.Reset()
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		cur.WriteRune(r)
		i++
	}
	parts = append(parts, cur.String())
	return parts
}

func orderedByLengthDesc(ops []string) []string {
	out := append([]string(nil), ops...)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if len(out[j]) > len(out[i]) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
