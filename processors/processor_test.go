package processors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekydillip/Market-Pulse-AI-sub000/normalize"
	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{BetaIssues, SamsungMembersPLM, SamsungMembersVOC} {
		p, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
		assert.NotEmpty(t, p.Title())
		assert.NotEmpty(t, p.OutputColumns())
	}

	_, err := Lookup("global_voc")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestInfosSorted(t *testing.T) {
	infos := Infos()
	require.Len(t, infos, 3)
	assert.Equal(t, BetaIssues, infos[0].Name)
	assert.Equal(t, SamsungMembersVOC, infos[2].Name)
	assert.Contains(t, infos[0].InputColumns, ColCaseCode)
}

func TestSchemaMatchesExportHeaders(t *testing.T) {
	p, err := Lookup(SamsungMembersPLM)
	require.NoError(t, err)

	raw := []map[string]string{{
		"caseCode":    "P240101-00001",
		"model":       "SM-S928B",
		"S/W Version": "S928BXXU1AXA1",
		"Title":       "Camera freezes",
		"Description": "Camera app freezes on zoom",
	}}
	rows := normalize.Rows(raw, p.Schema())
	require.Len(t, rows, 1)
	assert.Equal(t, "P240101-00001", rows[0][ColCaseCode])
	assert.Equal(t, "SM-S928B", rows[0][ColModelNo])
	assert.Equal(t, "S928BXXU1AXA1", rows[0][ColSWVer])
	assert.Equal(t, "Camera app freezes on zoom", rows[0][ColProblem])
	assert.Equal(t, "", rows[0][ColRDComment])
}

func TestBuildPrompt(t *testing.T) {
	p, err := Lookup(BetaIssues)
	require.NoError(t, err)
	rows := []types.Row{
		{ColTitle: "Battery drain", ColProblem: "Drains overnight", ColCaseCode: "secret"},
		{ColTitle: "Wifi drops", ColProblem: "Disconnects every hour"},
	}

	prompt := p.BuildPrompt(rows)
	assert.Contains(t, prompt, "exactly 2 objects")
	assert.Contains(t, prompt, `"Summarized Problem"`)
	assert.Contains(t, prompt, "Battery drain")
	assert.Contains(t, prompt, "Disconnects every hour")
	assert.NotContains(t, prompt, "secret")
	assert.Contains(t, prompt, "Camera, Battery, Network")

	// identical rows give an identical prompt, so responses can be cached
	assert.Equal(t, prompt, p.BuildPrompt(rows))
}

func TestParseResponse(t *testing.T) {
	p, err := Lookup(SamsungMembersVOC)
	require.NoError(t, err)
	rows := []types.Row{{ColContent: "a"}, {ColContent: "b"}}

	cases := []struct {
		name string
		raw  any
	}{
		{
			name: "plain array",
			raw:  `[{"Module":"Camera","sentiment":"Negative"},{"Module":"Battery","Sentiment":"Neutral"}]`,
		},
		{
			name: "fenced",
			raw:  "```json\n[{\"Module\":\"Camera\",\"Sentiment\":\"Negative\"},{\"Module\":\"Battery\",\"Sentiment\":\"Neutral\"}]\n```",
		},
		{
			name: "prose around",
			raw:  "Here you go:\n[{\"module\":\"Camera\",\"Sentiment\":\"Negative\"},{\"module\":\"Battery\",\"Sentiment\":\"Neutral\"}]\nThanks",
		},
		{
			name: "wrapped object",
			raw:  `{"results":[{"Module":"Camera","Sentiment":"Negative"},{"Module":"Battery","Sentiment":"Neutral"}]}`,
		},
		{
			name: "decoded body",
			raw: []any{
				map[string]any{"Module": "Camera", "Sentiment": "Negative"},
				map[string]any{"Module": "Battery", "Sentiment": "Neutral"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := p.ParseResponse(tc.raw, rows)
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, "Camera", out[0][ColModule])
			assert.Equal(t, "Negative", out[0][ColSentiment])
			assert.Equal(t, "Battery", out[1][ColModule])
			// requested but missing keys are empty
			assert.Equal(t, "", out[1][ColSubModule])
		})
	}
}

func TestParseResponseKeepsExtraKeys(t *testing.T) {
	p, err := Lookup(BetaIssues)
	require.NoError(t, err)

	out, err := p.ParseResponse(`[{"row":1,"Module":"Display","Confidence":0.9,"Tags":["ui","touch"],"Notes":null}]`, []types.Row{{}})
	require.NoError(t, err)
	assert.Equal(t, "Display", out[0][ColModule])
	assert.Equal(t, 0.9, out[0]["Confidence"])
	assert.Equal(t, `["ui","touch"]`, out[0]["Tags"])
	assert.Equal(t, "", out[0]["Notes"])
	_, hasRow := out[0]["row"]
	assert.False(t, hasRow)
}

func TestParseResponseErrors(t *testing.T) {
	p, err := Lookup(BetaIssues)
	require.NoError(t, err)
	rows := []types.Row{{}, {}}

	_, err = p.ParseResponse(`[{"Module":"Camera"}]`, rows)
	assert.ErrorIs(t, err, ErrRowCount)

	_, err = p.ParseResponse("I could not classify these.", rows)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = p.ParseResponse(`[{"Module": "Camera"}, {"Module": ]`, rows)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = p.ParseResponse(`["a","b"]`, rows)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = p.ParseResponse(42.0, rows)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "[1]", stripFences("```\n[1]\n```"))
	assert.Equal(t, "[1]", stripFences("  [1]  "))
	assert.True(t, strings.HasPrefix(stripFences("```json\n{}\n```"), "{"))
}
