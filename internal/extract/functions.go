// Package extract pulls function signatures and table shapes out of raw
// source text.
//
// This is intentionally heuristic (regex-based), not a parser with an AST:
// each matcher recognizes one narrow, documented idiom and anything it does
// not understand yields empty metadata rather than an error. The contract is
// "no match means empty, never throw", which keeps the fragility isolated
// here; a real incremental parser could replace this package behind the
// same two entry points without touching the walker or the builder.
package extract

import (
	"regexp"
	"strings"

	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

// docLookback bounds how far behind a declaration we search for its doc
// block when it is not immediately adjacent.
const docLookback = 500

// Synthetic argument appended when a function uses the pagination-options
// validator. It is surfaced as required even when the source wraps it in an
// optional validator upstream.
const (
	paginationMarker  = "paginationOptsValidator"
	paginationArgName = "paginationOpts"
	paginationArgType = "PaginationOptions"
	paginationArgDesc = "Pagination options with a cursor and the number of items to load"
)

var (
	// export const name = query({  (also mutation/action and their
	// internal-prefixed variants; "internal" normalizes away)
	reExportFn = regexp.MustCompile(`(?m)^\s*export\s+const\s+([A-Za-z_$][\w$]*)\s*=\s*(internalQuery|internalMutation|internalAction|query|mutation|action)\s*\(`)

	// args: {
	reArgsKey = regexp.MustCompile(`args\s*:\s*\{`)

	// name: v.string(  |  name: v.optional(v.id(
	reArgEntry = regexp.MustCompile(`(?m)^\s*([A-Za-z_$][\w$]*)\s*:\s*(v\.optional\(\s*)?v\.([A-Za-z_$][\w$]*)\s*\(`)

	// returns: v.array(
	reReturns = regexp.MustCompile(`returns\s*:\s*v\.([A-Za-z_$][\w$]*)\s*\(`)

	// @param name - description
	reParam = regexp.MustCompile(`@param\s+([A-Za-z_$][\w$]*)\s*[-:]?\s*(.*)`)

	// single-quoted values inside a @param description form an enum hint
	reQuoted = regexp.MustCompile(`'([^']*)'`)
)

// paramDoc is the per-parameter metadata mined from a doc block.
type paramDoc struct {
	description string
	enumValues  []string
}

// Functions extracts every exported callable declaration from src.
// modulePath is the slash-joined module namespace of the file; each
// descriptor's FullPath is modulePath + ":" + name. A file with no
// matching declarations yields an empty slice, never an error.
func Functions(src, modulePath string) []model.FunctionDescriptor {
	matches := reExportFn.FindAllStringSubmatchIndex(src, -1)
	fns := make([]model.FunctionDescriptor, 0, len(matches))

	for i, m := range matches {
		name := src[m[2]:m[3]]
		kind := normalizeKind(src[m[4]:m[5]])

		// The function's text segment runs from its declaration to the
		// next declaration (or EOF); everything we mine for this
		// function lives inside it.
		segEnd := len(src)
		if i+1 < len(matches) {
			segEnd = matches[i+1][0]
		}
		seg := src[m[0]:segEnd]

		// Never look back past the previous declaration, so a doc block
		// is only ever attributed to the function it directly precedes.
		floor := 0
		if i > 0 {
			floor = matches[i-1][0]
		}
		params := parseDocBlock(precedingDocBlock(src, m[0], floor))
		args := parseArgs(seg, params)

		if strings.Contains(seg, paginationMarker) && !hasArg(args, paginationArgName) {
			args = append(args, model.ArgumentDescriptor{
				Name:          paginationArgName,
				PrimitiveType: paginationArgType,
				Description:   paginationArgDesc,
			})
		}

		fn := model.FunctionDescriptor{
			Name:      name,
			FullPath:  modulePath + ":" + name,
			Kind:      kind,
			Arguments: args,
		}
		if rm := reReturns.FindStringSubmatch(seg); rm != nil {
			fn.ReturnHint = rm[1]
		}
		fns = append(fns, fn)
	}

	return fns
}

// normalizeKind maps a declaration keyword to its observable kind. The
// "internal" qualifier is stripped, not preserved: internalQuery and query
// are the same kind downstream.
func normalizeKind(keyword string) model.FunctionKind {
	switch keyword {
	case "query", "internalQuery":
		return model.KindQuery
	case "mutation", "internalMutation":
		return model.KindMutation
	default:
		return model.KindAction
	}
}

// precedingDocBlock returns the nearest /** ... */ block that closes within
// docLookback characters before position at, or "" when none exists. The
// window never extends below floor. An unbalanced block is treated as
// absent.
func precedingDocBlock(src string, at, floor int) string {
	start := at - docLookback
	if start < floor {
		start = floor
	}
	win := src[start:at]

	end := strings.LastIndex(win, "*/")
	if end < 0 {
		return ""
	}
	open := strings.LastIndex(win[:end], "/**")
	if open < 0 {
		return ""
	}
	return win[open : end+2]
}

// parseDocBlock mines @param annotations from a doc block. Single-quoted
// substrings in a parameter's description are collected, in order of
// appearance, as that parameter's enum value hints.
func parseDocBlock(block string) map[string]paramDoc {
	if block == "" {
		return nil
	}

	params := make(map[string]paramDoc)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*"))
		m := reParam.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		doc := paramDoc{description: strings.TrimSpace(m[2])}
		for _, q := range reQuoted.FindAllStringSubmatch(doc.description, -1) {
			doc.enumValues = append(doc.enumValues, q[1])
		}
		params[m[1]] = doc
	}
	return params
}

// parseArgs extracts the declared argument block from a function segment
// and merges in per-parameter doc metadata by name. A missing or
// unbalanced block yields an empty list.
func parseArgs(seg string, params map[string]paramDoc) []model.ArgumentDescriptor {
	loc := reArgsKey.FindStringIndex(seg)
	if loc == nil {
		return []model.ArgumentDescriptor{}
	}

	body, ok := balancedBraces(seg[loc[1]-1:])
	if !ok {
		return []model.ArgumentDescriptor{}
	}

	entries := reArgEntry.FindAllStringSubmatch(body, -1)
	args := make([]model.ArgumentDescriptor, 0, len(entries))
	for _, e := range entries {
		arg := model.ArgumentDescriptor{
			Name:          e[1],
			PrimitiveType: e[3],
			Optional:      e[2] != "",
		}
		if doc, ok := params[arg.Name]; ok {
			arg.Description = doc.description
			arg.EnumValues = doc.enumValues
		}
		args = append(args, arg)
	}
	return args
}

// balancedBraces returns the content between the opening brace at s[0] and
// its matching close. Braces inside single- or double-quoted strings are
// ignored. Returns ok=false when s does not start with '{' or the block
// never closes.
func balancedBraces(s string) (string, bool) {
	if s == "" || s[0] != '{' {
		return "", false
	}

	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}

func hasArg(args []model.ArgumentDescriptor, name string) bool {
	for _, a := range args {
		if a.Name == name {
			return true
		}
	}
	return false
}
