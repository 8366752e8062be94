package shellparse

import (
	"path/filepath"
	"regexp"
	"strings"
)

// SafeFilters is the set of read-only shell utilities permitted to appear
// as a non-matching stage of an otherwise-allowed pipeline (spec.md §4.B,
// GLOSSARY "Safe filter").
var SafeFilters = map[string]bool{
	"head": true, "tail": true, "grep": true, "egrep": true, "fgrep": true,
	"sed": true, "awk": true, "cut": true, "sort": true, "uniq": true,
	"wc": true, "tr": true, "less": true, "more": true, "cat": true,
	"tee": true, "column": true, "nl": true, "jq": true,
}

// vcsReadOnlySubcommands lists source-control subcommands that never
// mutate repository state.
var vcsReadOnlySubcommands = map[string]bool{
	"status": true, "log": true, "diff": true, "show": true,
	"branch": true, "remote": true, "config": true, "rev-parse": true,
	"describe": true,
}

// pkgManagerReadOnlySubcommands lists package-manager subcommands that
// only read state.
var pkgManagerReadOnlySubcommands = map[string]bool{
	"list": true, "show": true, "info": true, "outdated": true,
}

// safeBareCommands are simple, read-only shell builtins/utilities.
var safeBareCommands = map[string]bool{
	"ls": true, "pwd": true, "find": true, "file": true, "stat": true,
	"env": true, "printenv": true, "which": true, "whoami": true,
	"date": true, "echo": true, "true": true, "id": true, "uname": true,
	"du": true, "df": true, "dirname": true, "basename": true,
}

var vcsCommands = map[string]bool{"git": true, "hg": true, "svn": true}
var pkgManagerCommands = map[string]bool{
	"npm": true, "yarn": true, "pnpm": true, "pip": true, "pip3": true,
	"cargo": true, "go": true, "brew": true, "apt": true, "gem": true,
}

// outputRedirectPattern matches redirection to stdout: >, >>, 1>. Stderr
// redirection (2>, 2>&1) is intentionally excluded.
var outputRedirectPattern = regexp.MustCompile(`(^|[^12&])(1?>>?)(?:[^&]|$)`)

// isLsDirPrefix returns true if the leading tokens of part form an
// ls-family listing subcommand, used by VCS-flavored "ls-*" read ops.
func isLsDirPrefix(tokens []string) bool {
	if len(tokens) < 2 {
		return false
	}
	return strings.HasPrefix(tokens[1], "ls-")
}

func tokenize(part string) []string {
	return strings.Fields(part)
}

// disqualifiesSafeFilter reports whether part, assumed to be a safe-filter
// invocation, is disqualified by an unsafe flag or stdout redirection.
func disqualifiesSafeFilter(part string) bool {
	tokens := tokenize(part)
	if len(tokens) == 0 {
		return true
	}
	name := tokens[0]

	if name == "sed" {
		for _, t := range tokens[1:] {
			if t == "-i" || strings.HasPrefix(t, "-i") {
				return true
			}
		}
	}
	if name == "find" {
		for _, t := range tokens[1:] {
			if t == "-delete" {
				return true
			}
		}
	}

	if outputRedirectPattern.MatchString(part) {
		return true
	}
	return false
}

// IsSafeFilterPart reports whether part is a permitted non-matching
// pipeline stage: a bare invocation of a SafeFilters utility, not
// disqualified by an unsafe flag or stdout redirection.
func IsSafeFilterPart(part string) bool {
	tokens := tokenize(part)
	if len(tokens) == 0 {
		return false
	}
	if !SafeFilters[tokens[0]] {
		return false
	}
	return !disqualifiesSafeFilter(part)
}

// IsSafeSimplePart reports whether part is a read-only "safe command":
// directory listing, file reading, searching, simple metadata, env
// queries, a VCS read-only subcommand, or a package-manager read
// subcommand.
func IsSafeSimplePart(part string) bool {
	tokens := tokenize(part)
	if len(tokens) == 0 {
		return false
	}
	if disqualifiesSafeFilter(part) {
		return false
	}
	name := tokens[0]

	if safeBareCommands[name] {
		return true
	}
	if SafeFilters[name] {
		return true
	}
	if vcsCommands[name] {
		if isLsDirPrefix(tokens) {
			return true
		}
		if len(tokens) >= 2 && vcsReadOnlySubcommands[tokens[1]] {
			return true
		}
		return false
	}
	if pkgManagerCommands[name] {
		if len(tokens) >= 2 && pkgManagerReadOnlySubcommands[tokens[1]] {
			return true
		}
		return false
	}
	return false
}

// IsCdWithinWorkingDir reports whether a "cd" part's target resolves
// (after lexical normalization of "." and "..") to cwd or a descendant of
// it. Any path escaping cwd, or referencing home (~) or an absolute path
// outside cwd, is treated as "outside".
func IsCdWithinWorkingDir(part, cwd string) bool {
	tokens := tokenize(part)
	if len(tokens) < 1 || tokens[0] != "cd" {
		return false
	}
	target := "."
	if len(tokens) >= 2 {
		target = tokens[1]
	}
	if strings.HasPrefix(target, "~") {
		return false
	}

	var abs string
	if filepath.IsAbs(target) {
		abs = filepath.Clean(target)
	} else {
		abs = filepath.Clean(filepath.Join(cwd, target))
	}
	cleanCwd := filepath.Clean(cwd)

	if abs == cleanCwd {
		return true
	}
	rel, err := filepath.Rel(cleanCwd, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IsSafeBashCommand reports whether every sequenced part of cmd is either
// an in-scope "cd" or a safe simple command, and every stage of any
// pipeline is a safe simple command or a safe filter (spec.md §4.B, §8).
func IsSafeBashCommand(cmd, cwd string) bool {
	parts := Parse(cmd)
	if len(parts) == 0 {
		return false
	}

	i := 0
	for i < len(parts) {
		p := parts[i]
		switch p.Type {
		case PartCd:
			if !IsCdWithinWorkingDir(p.Text, cwd) {
				return false
			}
			i++
		case PartSimple:
			if !IsSafeSimplePart(p.Text) {
				return false
			}
			i++
		case PartPipeline:
			// Consume the contiguous run of pipeline parts belonging to
			// one pipeline and verify every stage is either safe-simple
			// or a safe filter.
			for i < len(parts) && parts[i].Type == PartPipeline {
				if !IsSafeSimplePart(parts[i].Text) && !IsSafeFilterPart(parts[i].Text) {
					return false
				}
				i++
			}
		}
	}
	return true
}
