// Package normalize maps arbitrary spreadsheet headers onto a canonical column schema.
package normalize

import (
	"strings"
	"unicode"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

// Schema is the canonical column set of one processing type. Aliases lists, per
// canonical column, the header spellings seen in exports. The canonical name itself
// always matches and does not need to be listed.
type Schema struct {
	Columns []string
	Aliases map[string][]string
}

// Key folds a header into its comparison form: lower case, letters and digits only.
// "S/W Ver." and "sw_ver" both fold to "swver".
func Key(header string) string {
	var b strings.Builder
	b.Grow(len(header))
	for _, r := range header {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// match is the canonical column a folded header maps to. rank orders competing
// headers for the same column: 0 is the canonical name, then aliases in listed order.
type match struct {
	col  string
	rank int
}

// lookup builds the folded-header -> canonical column table. Earlier columns win
// when two canonical columns claim the same alias.
func (s Schema) lookup() map[string]match {
	table := make(map[string]match, len(s.Columns)*3)
	for _, col := range s.Columns {
		if k := Key(col); k != "" {
			if _, taken := table[k]; !taken {
				table[k] = match{col: col}
			}
		}
	}
	for _, col := range s.Columns {
		for i, alias := range s.Aliases[col] {
			if k := Key(alias); k != "" {
				if _, taken := table[k]; !taken {
					table[k] = match{col: col, rank: i + 1}
				}
			}
		}
	}
	return table
}

type pick struct {
	rank   int
	header string
}

// Rows projects raw rows onto the schema. Unmapped source columns are dropped and
// canonical columns missing from the source are filled with "". When several source
// headers with non-empty values map to the same canonical column, the canonical
// header wins, then the earliest listed alias, then the lexically smallest header.
func Rows(raw []map[string]string, schema Schema) []types.Row {
	table := schema.lookup()
	out := make([]types.Row, len(raw))
	for i, src := range raw {
		row := make(types.Row, len(schema.Columns))
		for _, col := range schema.Columns {
			row[col] = ""
		}
		picked := make(map[string]pick, len(schema.Columns))
		for header, value := range src {
			m, ok := table[Key(header)]
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if cur, seen := picked[m.col]; seen &&
				(cur.rank < m.rank || cur.rank == m.rank && cur.header < header) {
				continue
			}
			picked[m.col] = pick{rank: m.rank, header: header}
			row[m.col] = value
		}
		out[i] = row
	}
	return out
}

// Matched reports which canonical columns the given headers cover.
func Matched(headers []string, schema Schema) map[string]bool {
	table := schema.lookup()
	seen := make(map[string]bool, len(schema.Columns))
	for _, h := range headers {
		if m, ok := table[Key(h)]; ok {
			seen[m.col] = true
		}
	}
	return seen
}
