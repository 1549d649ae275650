// Package adstxt parses the ads.txt 1.0.2 line grammar: data records,
// variable records, comments, and the optional extension/comment tails.
// The crawler stores raw files; this package is the structured view consumed
// by downstream tooling.
package adstxt

import "strings"

// Relation is field #3 of a data record: the type of account/relationship.
// Values other than the two canonical ones are preserved verbatim.
type Relation string

// Canonical relationship values.
const (
	RelationDirect   Relation = "DIRECT"
	RelationReseller Relation = "RESELLER"
)

// ParseRelation canonicalizes the relationship field, keeping unknown values
// as-is.
func ParseRelation(s string) Relation {
	switch s {
	case string(RelationDirect):
		return RelationDirect
	case string(RelationReseller):
		return RelationReseller
	default:
		return Relation(s)
	}
}

// Record is one data record of an ads.txt file.
type Record struct {
	// Domain is field #1: the domain name of the advertising system.
	Domain string `json:"domain"`
	// AccountID is field #2: the publisher's account ID.
	AccountID string `json:"account_id"`
	// Relation is field #3: the type of account/relationship.
	Relation Relation `json:"relation"`
	// AuthorityID is field #4, optional: the certification authority ID.
	AuthorityID string `json:"authority_id,omitempty"`
}

// Variable is a variable record such as contact=adops@example.com.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AdsTxt is the structured content of one ads.txt file: its data records in
// file order and its variable records grouped by name, with repeated names
// (contact lines, typically) accumulating values in file order. Comments,
// blank lines and unparseable lines are dropped; use ParseLines to see them.
type AdsTxt struct {
	Records   []Record            `json:"records"`
	Variables map[string][]string `json:"variables"`
}

// LineKind tags what one line of an ads.txt file contained.
type LineKind int

// Line classifications.
const (
	LineEmpty LineKind = iota
	LineComment
	LineRecord
	LineVariable
	LineUnknown
)

// Line is the lossless view of a single parsed line.
type Line struct {
	Kind LineKind
	// Record is set when Kind is LineRecord.
	Record *Record
	// Variable is set when Kind is LineVariable.
	Variable *Variable
	// Extension is the trimmed text after a ';' on record/variable lines.
	Extension string
	// Comment is the '#'-prefixed trailing comment, or the whole line for
	// comment lines.
	Comment string
	// Raw preserves unknown lines verbatim (after trimming).
	Raw string
}

// Parse extracts the data and variable records from an ads.txt body.
func Parse(data string) AdsTxt {
	out := AdsTxt{Variables: map[string][]string{}}
	for line := range strings.SplitSeq(data, "\n") {
		parsed := parseLine(line)
		switch parsed.Kind {
		case LineRecord:
			out.Records = append(out.Records, *parsed.Record)
		case LineVariable:
			v := parsed.Variable
			out.Variables[v.Name] = append(out.Variables[v.Name], v.Value)
		}
	}
	return out
}

// ParseLines maps every line of an ads.txt body, preserving comments, blank
// lines and unknown content.
func ParseLines(data string) []Line {
	lines := strings.Split(data, "\n")
	out := make([]Line, len(lines))
	for i, line := range lines {
		out[i] = parseLine(line)
	}
	return out
}

func parseLine(line string) Line {
	line = strings.TrimSpace(line)
	if line == "" {
		return Line{Kind: LineEmpty}
	}
	if strings.HasPrefix(line, "#") {
		return Line{Kind: LineComment, Comment: line}
	}
	if rec, ext, comment, ok := parseRecord(line); ok {
		return Line{Kind: LineRecord, Record: rec, Extension: ext, Comment: comment}
	}
	if v, ext, comment, ok := parseVariable(line); ok {
		return Line{Kind: LineVariable, Variable: v, Extension: ext, Comment: comment}
	}
	return Line{Kind: LineUnknown, Raw: line}
}

// parseRecord understands both the three-field form (domain, account,
// relation) and the four-field form with a certification authority ID, each
// optionally followed by a ';' extension and a '#' comment.
func parseRecord(line string) (*Record, string, string, bool) {
	domainPart, rest, ok := strings.Cut(line, ",")
	if !ok {
		return nil, "", "", false
	}
	accountPart, rest, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", "", false
	}
	rec := &Record{
		Domain:    strings.TrimSpace(domainPart),
		AccountID: strings.TrimSpace(accountPart),
	}

	if relationPart, tail, hasAuthority := strings.Cut(rest, ","); hasAuthority {
		rec.Relation = ParseRelation(strings.TrimSpace(relationPart))
		rec.AuthorityID = strings.TrimSpace(beforeTail(tail))
		ext, comment := parseTail(tail)
		return rec, ext, comment, true
	}

	rec.Relation = ParseRelation(strings.TrimSpace(beforeTail(rest)))
	ext, comment := parseTail(rest)
	return rec, ext, comment, true
}

func parseVariable(line string) (*Variable, string, string, bool) {
	namePart, rest, ok := strings.Cut(line, "=")
	if !ok {
		return nil, "", "", false
	}
	v := &Variable{
		Name:  strings.TrimSpace(namePart),
		Value: strings.TrimSpace(beforeTail(rest)),
	}
	ext, comment := parseTail(rest)
	return v, ext, comment, true
}

// beforeTail returns the text preceding the first ';' or '#'.
func beforeTail(s string) string {
	if i := strings.IndexAny(s, ";#"); i >= 0 {
		return s[:i]
	}
	return s
}

// parseTail splits the optional "; extension # comment" suffix.
func parseTail(s string) (extension, comment string) {
	i := strings.IndexAny(s, ";#")
	if i < 0 {
		return "", ""
	}
	if s[i] == '#' {
		return "", strings.TrimSpace(s[i:])
	}
	after := s[i+1:]
	if j := strings.IndexByte(after, '#'); j >= 0 {
		return strings.TrimSpace(after[:j]), strings.TrimSpace(after[j:])
	}
	return strings.TrimSpace(after), ""
}
