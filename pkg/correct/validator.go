package correct

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// forbiddenKeywords rejects the statement outright wherever they appear as a
// bare identifier, even nested in a CTE or subquery. Kept to words that are
// reserved in that position; maintenance commands like RESET or COMMENT are
// legal column names and are already blocked as statements by the
// select-family check.
var forbiddenKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "drop": true,
	"truncate": true, "alter": true, "create": true, "grant": true,
	"revoke": true, "vacuum": true, "analyze": true, "copy": true,
	"call": true, "do": true,
}

// Validate gates a corrected statement: exactly one read-only statement, no
// data-modifying keywords anywhere, and no unresolved findings from the
// rewrite stages. It returns the normalized SQL (trailing semicolon
// stripped) or a rejection.
func Validate(sql string, findings []Finding) (string, *Rejection) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", rejected(ReasonEmptyStatement, "", "empty SQL statement").Rejection
	}

	toks := lex(sql)
	if len(toks) == 0 {
		return "", rejected(ReasonEmptyStatement, "", "statement contains only comments").Rejection
	}

	// A single trailing semicolon is noise; strip it. Any other semicolon
	// means more than one statement.
	if last := toks[len(toks)-1]; last.kind == tokPunct && last.text == ";" {
		sql = strings.TrimSpace(sql[:last.start])
		toks = toks[:len(toks)-1]
		if len(toks) == 0 {
			return "", rejected(ReasonEmptyStatement, "", "empty SQL statement").Rejection
		}
	}
	for _, t := range toks {
		if t.kind == tokPunct && t.text == ";" {
			return "", rejected(ReasonMultipleStatements, ";",
				"only a single statement is allowed").Rejection
		}
	}

	first := toks[0]
	if !(first.is("select") || first.is("with") || first.is("explain")) {
		return "", rejected(ReasonNotReadOnly, first.text,
			"statement must start with SELECT, WITH or EXPLAIN").Rejection
	}

	for _, t := range toks {
		if t.kind == tokIdent && !t.quoted && forbiddenKeywords[t.fold()] {
			return "", rejected(ReasonNotReadOnly, t.text,
				"data-modifying keyword is not allowed").Rejection
		}
	}

	if rej := worstFinding(findings); rej != nil {
		return "", rej
	}

	// String literals are the one place the rewrite stages never look into;
	// screen their contents for injection fragments.
	for _, t := range toks {
		if t.kind != tokString {
			continue
		}
		body := strings.Trim(t.text, "'")
		if body == "" {
			continue
		}
		if injected, _ := libinjection.IsSQLi(body); injected {
			return "", rejected(ReasonInjection, truncateIdent(body),
				"string literal looks like an injection payload").Rejection
		}
	}

	return sql, nil
}

// worstFinding picks the rejection with the highest severity: an unknown
// table invalidates everything downstream, ambiguity beats a plain miss.
func worstFinding(findings []Finding) *Rejection {
	order := []Reason{ReasonUnknownTable, ReasonAmbiguousIdentifier, ReasonUnresolvedIdentifier}
	for _, reason := range order {
		for _, f := range findings {
			if f.Reason == reason {
				return rejected(f.Reason, f.Identifier, f.Detail).Rejection
			}
		}
	}
	for _, f := range findings {
		return rejected(f.Reason, f.Identifier, f.Detail).Rejection
	}
	return nil
}

func truncateIdent(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
