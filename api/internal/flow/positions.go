package flow

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"sipnread/api/internal/llm/types"
)

var (
	clockRe = regexp.MustCompile(`(?i)\b(1[0-2]|[0-9])(?::00)?\s*(?:o'clock|o’clock|oclock)`)
	nearRe  = regexp.MustCompile(`(?i)\b(?:at|near|around|toward|towards|by)\s+(1[0-2]|[0-9])\b`)
)

type clockRef struct {
	at, n int
}

type mention struct {
	at, sym int
}

// DropUnstatedPositions clears positions the source text does not back with an
// explicit clock number. Each number belongs to the closest symbol mentioned
// before it (or the first one after it when none precedes). A symbol the text
// never names is checked against every number. Vague spatial words never
// produce a position.
func DropUnstatedPositions(text string, in []types.ExtractedSymbol) []types.ExtractedSymbol {
	lower := strings.ToLower(text)
	refs := clockRefs(lower)

	var mentions []mention
	for i, s := range in {
		for _, at := range mentionsOf(lower, s.SymbolName) {
			mentions = append(mentions, mention{at: at, sym: i})
		}
	}
	sort.Slice(mentions, func(a, b int) bool { return mentions[a].at < mentions[b].at })

	owned := make(map[int]map[int]bool, len(in))
	for _, r := range refs {
		owner := -1
		for _, m := range mentions {
			if m.at > r.at {
				break
			}
			owner = m.sym
		}
		if owner < 0 && len(mentions) > 0 {
			owner = mentions[0].sym
		}
		if owner < 0 {
			continue
		}
		if owned[owner] == nil {
			owned[owner] = map[int]bool{}
		}
		owned[owner][r.n] = true
	}

	named := make(map[int]bool, len(mentions))
	for _, m := range mentions {
		named[m.sym] = true
	}

	out := make([]types.ExtractedSymbol, 0, len(in))
	for i, s := range in {
		s.SymbolName = strings.TrimSpace(s.SymbolName)
		if s.SymbolName == "" {
			continue
		}
		if s.Position != nil {
			ok := owned[i][*s.Position]
			if !named[i] {
				ok = anyRef(refs, *s.Position)
			}
			if !ok {
				s.Position = nil
			}
		}
		out = append(out, s)
	}
	return out
}

// mentionsOf finds whole-word occurrences of name, allowing a plural suffix.
func mentionsOf(lower, name string) []int {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil
	}
	var out []int
	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], key)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(key)
		rest := lower[end:]
		if strings.HasPrefix(rest, "es") && !wordAt(rest[2:]) {
			end += 2
		} else if strings.HasPrefix(rest, "s") && !wordAt(rest[1:]) {
			end++
		}
		if !wordBefore(lower[:start]) && !wordAt(lower[end:]) {
			out = append(out, start)
		}
		from = start + len(key)
	}
	return out
}

func wordAt(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return s != "" && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func wordBefore(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func clockRefs(s string) []clockRef {
	var out []clockRef
	for _, re := range []*regexp.Regexp{clockRe, nearRe} {
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			if n, err := strconv.Atoi(s[m[2]:m[3]]); err == nil {
				out = append(out, clockRef{at: m[2], n: n})
			}
		}
	}
	return out
}

func anyRef(refs []clockRef, n int) bool {
	for _, r := range refs {
		if r.n == n {
			return true
		}
	}
	return false
}
