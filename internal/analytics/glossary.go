package analytics

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// glossaryTerms are legal terms-of-art worth surfacing to researchers. The
// list is deliberately jurisdiction-neutral; callers add jurisdiction
// vocabulary through Glossary's extraTerms argument.
var glossaryTerms = []string{
	"certiorari", "habeas corpus", "mandamus", "quo warranto",
	"res judicata", "sub judice", "ultra vires", "locus standi",
	"mens rea", "actus reus", "obiter dicta", "ratio decidendi",
	"stare decisis", "ex parte", "suo motu", "in limine",
	"prima facie", "amicus curiae", "interlocutory", "injunction",
	"estoppel", "laches", "per incuriam", "functus officio",
}

// GlossaryEntry is one term with its usage across the dataset.
type GlossaryEntry struct {
	Term        string   `json:"term"`
	Occurrences int      `json:"occurrences"`
	CaseIDs     []string `json:"case_ids"`
}

// Glossary builds a frequency table of legal terms-of-art across case texts,
// with the cases each term appears in. Matching is case-insensitive on word
// boundaries. Terms that never appear are omitted.
func Glossary(cases []model.CaseRecord, extraTerms []string) []GlossaryEntry {
	terms := append(append([]string{}, glossaryTerms...), extraTerms...)

	type state struct {
		re    *regexp.Regexp
		count int
		cases []string
	}
	states := make(map[string]*state, len(terms))
	for _, t := range terms {
		if _, dup := states[t]; dup {
			continue
		}
		states[t] = &state{re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)}
	}

	for _, c := range cases {
		text := c.Text
		if text == "" {
			continue
		}
		for _, st := range states {
			n := len(st.re.FindAllStringIndex(text, -1))
			if n == 0 {
				continue
			}
			st.count += n
			st.cases = append(st.cases, c.ID)
		}
	}

	var entries []GlossaryEntry
	for term, st := range states {
		if st.count == 0 {
			continue
		}
		sort.Strings(st.cases)
		entries = append(entries, GlossaryEntry{
			Term:        strings.ToLower(term),
			Occurrences: st.count,
			CaseIDs:     st.cases,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Occurrences != entries[j].Occurrences {
			return entries[i].Occurrences > entries[j].Occurrences
		}
		return entries[i].Term < entries[j].Term
	})
	return entries
}
