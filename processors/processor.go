// Package processors defines the processing types an upload can be run through: the
// canonical columns each expects, the prompt sent per chunk, and how the model's answer
// is read back into rows.
package processors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/geekydillip/Market-Pulse-AI-sub000/normalize"
	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

var (
	ErrUnknownType = errors.New("unknown processing type")
	ErrNoJSON      = errors.New("no JSON array in model response")
	ErrRowCount    = errors.New("row count mismatch")
)

// Processor is one processing type.
type Processor interface {
	Name() string
	Title() string
	Schema() normalize.Schema
	// OutputColumns are the columns the model is asked to fill.
	OutputColumns() []string
	BuildPrompt(rows []types.Row) string
	// ParseResponse reads the model's answer for rows. It fails unless the answer holds
	// exactly one object per row.
	ParseResponse(raw any, rows []types.Row) ([]types.Row, error)
}

// kind is a table-driven Processor.
type kind struct {
	name    string
	title   string
	schema  normalize.Schema
	prompt  []string // columns shown to the model, in order
	outputs []string
	role    string
	rules   []string
	vocab   map[string][]string // allowed values per output column
}

func (k *kind) Name() string             { return k.name }
func (k *kind) Title() string            { return k.title }
func (k *kind) Schema() normalize.Schema { return k.schema }
func (k *kind) OutputColumns() []string  { return append([]string(nil), k.outputs...) }

func (k *kind) BuildPrompt(rows []types.Row) string {
	items := make([]map[string]any, len(rows))
	for i, row := range rows {
		item := make(map[string]any, len(k.prompt)+1)
		item["row"] = i + 1
		for _, col := range k.prompt {
			item[col] = row[col]
		}
		items[i] = item
	}
	data, err := sonic.ConfigStd.MarshalIndent(items, "", "  ")
	if err != nil {
		data = []byte("[]")
	}

	var b strings.Builder
	b.WriteString(k.role)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Analyze each of the %d records below. ", len(rows))
	fmt.Fprintf(&b, "Return ONLY a JSON array with exactly %d objects, one per record, in the same order. ", len(rows))
	b.WriteString("Each object must have these keys: ")
	b.WriteString(quoteAll(k.outputs))
	b.WriteString(".\n")
	for _, rule := range k.rules {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	cols := make([]string, 0, len(k.vocab))
	for col := range k.vocab {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		fmt.Fprintf(&b, "- %q must be one of: %s.\n", col, strings.Join(k.vocab[col], ", "))
	}
	b.WriteString("\nRecords:\n")
	b.Write(data)
	b.WriteString("\n")
	return b.String()
}

func (k *kind) ParseResponse(raw any, rows []types.Row) ([]types.Row, error) {
	items, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}
	if len(items) != len(rows) {
		return nil, fmt.Errorf("%w: expected %d objects, got %d", ErrRowCount, len(rows), len(items))
	}
	fold := make(map[string]string, len(k.outputs))
	for _, col := range k.outputs {
		fold[normalize.Key(col)] = col
	}
	out := make([]types.Row, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T, not an object", ErrNoJSON, i, item)
		}
		row := make(types.Row, len(k.outputs))
		for _, col := range k.outputs {
			row[col] = ""
		}
		for key, v := range obj {
			if key == "row" {
				continue
			}
			if col, ok := fold[normalize.Key(key)]; ok {
				key = col
			}
			row[key] = scalar(v)
		}
		out[i] = row
	}
	return out, nil
}

// decodeArray accepts a JSON array as text (optionally fenced or wrapped in prose), an
// already decoded array, or an object holding exactly one array.
func decodeArray(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		var found []any
		for _, field := range v {
			if arr, ok := field.([]any); ok {
				if found != nil {
					return nil, fmt.Errorf("%w: object holds several arrays", ErrNoJSON)
				}
				found = arr
			}
		}
		if found == nil {
			return nil, ErrNoJSON
		}
		return found, nil
	case string:
		text := stripFences(v)
		start := strings.IndexByte(text, '[')
		end := strings.LastIndexByte(text, ']')
		if start < 0 || end < start {
			if strings.HasPrefix(strings.TrimSpace(text), "{") {
				var obj map[string]any
				if err := sonic.UnmarshalString(text, &obj); err == nil {
					return decodeArray(obj)
				}
			}
			return nil, ErrNoJSON
		}
		var arr []any
		if err := sonic.UnmarshalString(text[start:end+1], &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%w: response is %T", ErrNoJSON, raw)
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// scalar keeps strings, numbers and booleans; nested values become their JSON text.
func scalar(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return t
	default:
		data, err := sonic.MarshalString(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return data
	}
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(quoted, ", ")
}
