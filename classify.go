package neoconsole

import (
	"regexp"
	"strings"
)

// Dialect is the language a piece of text is written in.
type Dialect int

const (
	// DialectNone is the dialect of blank text.
	DialectNone Dialect = iota
	// DialectCypher is a Cypher query.
	DialectCypher
	// DialectGeoff is Geoff interchange text, which is data rather than a query.
	DialectGeoff
	// DialectUnknown is text that is neither.
	DialectUnknown
)

func (d Dialect) String() string {
	switch d {
	case DialectNone:
		return "none"
	case DialectCypher:
		return "cypher"
	case DialectGeoff:
		return "geoff"
	default:
		return "unknown"
	}
}

// Classification is the verdict of Classify.
type Classification struct {
	Dialect Dialect
	// Mutating is true whenever running the text could change the graph. Anything
	// that is not recognised as Cypher is mutating, and so is Cypher that uses a
	// clause word outside the read-only vocabulary.
	Mutating bool
	// WellFormed is true for Cypher whose first clause exists in the selected grammar.
	WellFormed bool
	// Empty is true for blank text, which is never executed.
	Empty bool
	// Keywords lists the mutation keywords found, in rule order, followed by any
	// unrecognised clause words.
	Keywords []string
	// Version is the grammar the verdict was made against: the query's own CYPHER
	// prefix if it has one, otherwise the pin passed to Classify.
	Version VersionPin
}

// Executable reports whether the text should be sent to the engine at all.
func (c Classification) Executable() bool {
	return !c.Empty && c.Dialect != DialectGeoff
}

type mutationRule struct {
	keyword string
	pattern *regexp.Regexp
}

type clauseOpener struct {
	keyword string
	pattern *regexp.Regexp
	since   VersionPin
	// until is exclusive; the cleared pin means the clause is still valid.
	until VersionPin
}

func (o clauseOpener) validFor(pin VersionPin) bool {
	if o.since.IsSet() && !pin.AtLeast(o.since) {
		return false
	}
	if o.until.IsSet() && pin.AtLeast(o.until) {
		return false
	}
	return true
}

// keywordPattern matches kw as a whole word that is not a property or function
// access such as n.create or db.create.
func keywordPattern(kw string) *regexp.Regexp {
	words := strings.Fields(kw)
	return regexp.MustCompile(`(?i)(?:^|[^.\w$])` + strings.Join(words, `\s+`) + `(?:$|[^\w])`)
}

func openerPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + strings.Join(strings.Fields(kw), `\s+`) + `(?:$|[^\w])`)
}

func rule(kw string) mutationRule { return mutationRule{keyword: kw, pattern: keywordPattern(kw)} }

func opener(kw, since, until string) clauseOpener {
	return clauseOpener{
		keyword: kw,
		pattern: openerPattern(kw),
		since:   MustVersionPin(since),
		until:   MustVersionPin(until),
	}
}

// mutationRules apply under every grammar. A match anywhere in the query makes it
// mutating.
var mutationRules = []mutationRule{
	rule("CREATE UNIQUE"),
	rule("CREATE"),
	rule("MERGE"),
	rule("DETACH DELETE"),
	rule("DELETE"),
	rule("SET"),
	rule("REMOVE"),
	rule("DROP"),
	rule("FOREACH"),
	rule("LOAD CSV"),
	rule("CALL"),
	rule("RELATE"),
	rule("USING PERIODIC COMMIT"),
	rule("IN TRANSACTIONS"),
	rule("ALTER"),
	rule("GRANT"),
	rule("DENY"),
	rule("REVOKE"),
	rule("START DATABASE"),
	rule("STOP DATABASE"),
	rule("INSERT"),
	rule("TERMINATE"),
}

// clauseOpeners are the clauses a Cypher statement can start with, with the
// grammar versions that accept them. Longer keywords come first.
var clauseOpeners = []clauseOpener{
	opener("START DATABASE", "4.0", ""),
	opener("STOP DATABASE", "4.0", ""),
	opener("START", "", "3.2"),
	opener("OPTIONAL MATCH", "1.9", ""),
	opener("MATCH", "1.9", ""),
	opener("CREATE", "", ""),
	opener("MERGE", "2.0", ""),
	opener("UNWIND", "2.1", ""),
	opener("LOAD CSV", "2.1", ""),
	opener("USING PERIODIC COMMIT", "2.1", ""),
	opener("FOREACH", "", ""),
	opener("WITH", "", ""),
	opener("RETURN", "", ""),
	opener("DROP", "", ""),
	opener("CALL", "3.0", ""),
	opener("SHOW", "4.0", ""),
	opener("USE", "4.0", ""),
	opener("ALTER", "4.0", ""),
	opener("GRANT", "4.0", ""),
	opener("DENY", "4.0", ""),
	opener("REVOKE", "4.0", ""),
	opener("TERMINATE", "4.4", ""),
	opener("INSERT", "5.18", ""),
}

// readVocabulary is every word a read-only statement may use outside brackets,
// other than names it declares itself.
var readVocabulary = wordSet(`
	MATCH OPTIONAL WHERE WITH RETURN DISTINCT UNWIND AS ORDER BY ASC ASCENDING DESC
	DESCENDING SKIP OFFSET LIMIT UNION ALL USE SHOW YIELD FILTER LET FINISH NEXT START
	AND OR XOR NOT IN IS NULL TRUE FALSE CASE WHEN THEN ELSE END STARTS ENDS CONTAINS
	EXISTS COUNT COLLECT ANY SHORTEST PATH PATHS GROUP GROUPS WALK TRAIL ACYCLIC
	DATABASE DATABASES TRANSACTION TRANSACTIONS INDEX INDEXES CONSTRAINT CONSTRAINTS
	PROCEDURE PROCEDURES FUNCTION FUNCTIONS SETTING SETTINGS USER USERS ROLE ROLES
	PRIVILEGE PRIVILEGES ALIAS ALIASES SERVER SERVERS CURRENT HOME DEFAULT BUILT
	EXECUTABLE DEFINED POPULATED
`)

// ruleWords are the words of the mutation rules. They are reported through the
// rules, never as unrecognised words.
var ruleWords = func() map[string]bool {
	set := make(map[string]bool)
	for _, r := range mutationRules {
		for _, w := range strings.Fields(r.keyword) {
			set[w] = true
		}
	}
	return set
}()

// declaringWords introduce the name that follows them.
var declaringWords = wordSet("AS USE")

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

var (
	cypherPrefix  = regexp.MustCompile(`(?i)^CYPHER(?:\s+(\d+\.\d+))?(?:\s+[\w.]+\s*=\s*[\w.]+)*(?:\s+|$)`)
	explainPrefix = regexp.MustCompile(`(?i)^(?:EXPLAIN|PROFILE)(?:\s+|$)`)
)

// Classify inspects query and decides its dialect, whether it mutates the graph and
// whether it is well formed under pin. Comments, string literals and quoted
// identifiers are ignored. When in doubt the verdict is mutating.
func Classify(query string, pin VersionPin) Classification {
	if strings.TrimSpace(query) == "" {
		return Classification{Dialect: DialectNone, Empty: true, Version: pin}
	}
	if isGeoff(query) {
		return Classification{Dialect: DialectGeoff, Mutating: true, Version: pin}
	}

	text := strings.TrimSpace(blankLiterals(query))
	if text == "" {
		// Only comments.
		return Classification{Dialect: DialectNone, Empty: true, Version: pin}
	}

	version := pin
	for {
		if m := cypherPrefix.FindStringSubmatchIndex(text); m != nil {
			if m[2] >= 0 {
				if p, err := ParseVersionPin(text[m[2]:m[3]]); err == nil {
					version = p
				}
			}
			text = strings.TrimSpace(text[m[1]:])
			continue
		}
		if m := explainPrefix.FindStringIndex(text); m != nil {
			text = strings.TrimSpace(text[m[1]:])
			continue
		}
		break
	}

	c := Classification{Dialect: DialectUnknown, Mutating: true, Version: version}
	for _, o := range clauseOpeners {
		if o.pattern.MatchString(text) {
			c.Dialect = DialectCypher
			c.WellFormed = o.validFor(version)
			break
		}
	}
	if c.Dialect != DialectCypher {
		return c
	}

	for _, r := range mutationRules {
		if r.pattern.MatchString(text) {
			c.Keywords = append(c.Keywords, r.keyword)
		}
	}
	c.Keywords = append(c.Keywords, unrecognisedWords(text)...)
	c.Mutating = len(c.Keywords) > 0 || !c.WellFormed
	return c
}

// word is an identifier or keyword found by scanWords.
type word struct {
	text string
	// depth counts the parentheses and square brackets around the word.
	depth int
	// prev and next are the nearest non-space bytes around the word, 0 at the edges.
	prev, next byte
	// call is set when the word is directly followed by '(' as in a function call.
	call bool
}

// scanWords splits text, which must already have its literals blanked, into words.
// Numbers are skipped.
func scanWords(text string) []word {
	var out []word
	depth := 0
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '(' || c == '[':
			depth++
			i++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
			i++
		case c >= '0' && c <= '9':
			for i < len(text) && (isWordByte(text[i]) || text[i] == '.') {
				i++
			}
		case isWordByte(c):
			j := i
			for j < len(text) && isWordByte(text[j]) {
				j++
			}
			out = append(out, word{
				text:  text[i:j],
				depth: depth,
				prev:  prevByte(text, i),
				next:  nextByte(text, j),
				call:  j < len(text) && text[j] == '(',
			})
			i = j
		default:
			i++
		}
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func prevByte(s string, i int) byte {
	for i--; i >= 0; i-- {
		if !isSpace(s[i]) {
			return s[i]
		}
	}
	return 0
}

func nextByte(s string, j int) byte {
	for ; j < len(s); j++ {
		if !isSpace(s[j]) {
			return s[j]
		}
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// unrecognisedWords returns, upper-cased and in order of first use, the words in
// clause position that are neither read-only vocabulary, mutation rule words nor
// names the query declares. Words inside brackets, property keys, labels,
// parameters and function names are never in clause position.
func unrecognisedWords(text string) []string {
	words := scanWords(text)

	declared := make(map[string]bool)
	for i := 0; i < len(words); i++ {
		w := words[i]
		if w.depth > 0 || w.next == '=' {
			declared[w.text] = true
		}
		up := strings.ToUpper(w.text)
		if declaringWords[up] && i+1 < len(words) {
			declared[words[i+1].text] = true
		}
		if up == "YIELD" {
			i = declareYielded(words, i+1, declared) - 1
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, w := range words {
		if w.depth > 0 || w.call || w.next == ':' || w.next == '=' {
			continue
		}
		if w.prev == '.' || w.prev == ':' || w.prev == '$' {
			continue
		}
		up := strings.ToUpper(w.text)
		if readVocabulary[up] || ruleWords[up] || declared[w.text] || seen[up] {
			continue
		}
		seen[up] = true
		out = append(out, up)
	}
	return out
}

// declareYielded marks the column list that starts at words[i] as declared,
// e.g. "a, b AS c", and returns the index just past it.
func declareYielded(words []word, i int, declared map[string]bool) int {
	for i < len(words) {
		if up := strings.ToUpper(words[i].text); readVocabulary[up] || ruleWords[up] {
			return i
		}
		declared[words[i].text] = true
		if i+2 < len(words) && strings.EqualFold(words[i+1].text, "AS") {
			i += 2
			declared[words[i].text] = true
		}
		if words[i].next != ',' {
			return i + 1
		}
		i++
	}
	return i
}

// isGeoff reports whether every line that is not blank or a comment starts a Geoff
// node or relationship declaration.
func isGeoff(text string) bool {
	seen := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if line[0] != '(' && line[0] != '{' {
			return false
		}
		seen = true
	}
	return seen
}

// blankLiterals replaces comments, string literals and backtick-quoted identifiers
// with spaces. Newlines are kept.
func blankLiterals(q string) string {
	const (
		code = iota
		lineComment
		blockComment
		quoted
	)
	out := []byte(q)
	state := code
	var quote byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case code:
			switch {
			case c == '/' && i+1 < len(out) && out[i+1] == '/':
				state = lineComment
				out[i] = ' '
			case c == '/' && i+1 < len(out) && out[i+1] == '*':
				state = blockComment
				out[i], out[i+1] = ' ', ' '
				i++
			case c == '\'' || c == '"' || c == '`':
				state = quoted
				quote = c
				out[i] = ' '
			}
		case lineComment:
			if c == '\n' {
				state = code
			} else {
				out[i] = ' '
			}
		case blockComment:
			if c == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = code
			} else if c != '\n' {
				out[i] = ' '
			}
		case quoted:
			switch {
			case c == '\\' && quote != '`' && i+1 < len(out):
				out[i] = ' '
				if out[i+1] != '\n' {
					out[i+1] = ' '
				}
				i++
			case c == quote && quote == '`' && i+1 < len(out) && out[i+1] == '`':
				out[i], out[i+1] = ' ', ' '
				i++
			case c == quote:
				out[i] = ' '
				state = code
			case c != '\n':
				out[i] = ' '
			}
		}
	}
	return string(out)
}
