package processors

import "github.com/geekydillip/Market-Pulse-AI-sub000/normalize"

const (
	BetaIssues        = "beta_issues"
	SamsungMembersPLM = "samsung_members_plm"
	SamsungMembersVOC = "samsung_members_voc"
)

// Column names as they appear in the exported workbooks.
const (
	ColCaseCode          = "Case Code"
	ColModelNo           = "Model No."
	ColProgrStat         = "Progr.Stat."
	ColSWVer             = "S/W Ver."
	ColTitle             = "Title"
	ColProblem           = "Problem"
	ColResolveOption     = "Resolve Option(Medium)"
	ColRDComment         = "R&D Comment"
	ColContent           = "Content"
	ColModule            = "Module"
	ColSubModule         = "Sub-Module"
	ColIssueType         = "Issue Type"
	ColSubIssueType      = "Sub-Issue Type"
	ColSummarizedProblem = "Summarized Problem"
	ColSeverity          = "Severity"
	ColSeverityReason    = "Severity Reason"
	ColResolveType       = "Resolve Type"
	ColSentiment         = "Sentiment"
)

var caseAliases = map[string][]string{
	ColCaseCode:      {"caseCode", "Case No", "Case ID", "Issue ID"},
	ColModelNo:       {"modelNo", "model", "Model Name", "Device Model"},
	ColProgrStat:     {"progrStat", "Progress Status", "Status"},
	ColSWVer:         {"swVer", "S/W Version", "Software Version", "SW Ver"},
	ColTitle:         {"title", "Subject", "Issue Title"},
	ColProblem:       {"problem", "Issue Description", "Description", "Content"},
	ColResolveOption: {"resolveOption", "Resolve Option"},
	ColRDComment:     {"rdComment", "RnD Comment", "Developer Comment"},
}

var modules = []string{"Camera", "Battery", "Network", "Display", "Heating", "Connectivity", "Other"}

var issueTypes = []string{
	"Crash", "Performance", "Functional", "Usability", "System",
	"Compatibility", "Security", "Battery", "UI/UX",
}

var subIssueTypes = []string{"CP Crash", "App Crash", "ANR", "Slow/Lag", "Feature Not Working", "Poor Quality", "Other"}

var severities = []string{"Critical", "High", "Medium", "Low"}

var classification = []string{
	ColModule, ColSubModule, ColIssueType, ColSubIssueType,
	ColSummarizedProblem, ColSeverity, ColSeverityReason,
}

func init() {
	caseColumns := []string{
		ColCaseCode, ColModelNo, ColProgrStat, ColSWVer,
		ColTitle, ColProblem, ColResolveOption, ColRDComment,
	}
	register(&kind{
		name:  BetaIssues,
		title: "Beta Issues",
		schema: normalize.Schema{
			Columns: caseColumns,
			Aliases: caseAliases,
		},
		prompt:  []string{ColModelNo, ColSWVer, ColTitle, ColProblem, ColRDComment},
		outputs: append(append([]string(nil), classification...), ColResolveType),
		role:    "You are a QA analyst triaging beta test issues reported on Samsung devices.",
		rules: []string{
			`"Summarized Problem" is one plain English sentence of at most 20 words.`,
			`"Severity Reason" explains the severity in a few words.`,
			`"Resolve Type" is "S/W Fix", "H/W Fix", "Not a Defect" or "Need More Info".`,
			"Base the answer only on the record; leave a key empty rather than guess.",
		},
		vocab: map[string][]string{
			ColModule:       modules,
			ColIssueType:    issueTypes,
			ColSubIssueType: subIssueTypes,
			ColSeverity:     severities,
		},
	})

	register(&kind{
		name:  SamsungMembersPLM,
		title: "Samsung Members PLM",
		schema: normalize.Schema{
			Columns: caseColumns,
			Aliases: caseAliases,
		},
		prompt:  []string{ColModelNo, ColProgrStat, ColTitle, ColProblem, ColResolveOption},
		outputs: append(append([]string(nil), classification...), ColResolveType),
		role:    "You are a product quality engineer classifying Samsung Members PLM cases.",
		rules: []string{
			`"Summarized Problem" is one plain English sentence of at most 20 words.`,
			`"Resolve Type" restates "Resolve Option(Medium)" as "S/W Fix", "H/W Fix", "Not a Defect" or "Need More Info".`,
			"Translate non-English text before classifying.",
		},
		vocab: map[string][]string{
			ColModule:       modules,
			ColIssueType:    issueTypes,
			ColSubIssueType: subIssueTypes,
			ColSeverity:     severities,
		},
	})

	register(&kind{
		name:  SamsungMembersVOC,
		title: "Samsung Members VOC",
		schema: normalize.Schema{
			Columns: []string{ColModelNo, ColSWVer, ColContent},
			Aliases: map[string][]string{
				ColModelNo: caseAliases[ColModelNo],
				ColSWVer:   caseAliases[ColSWVer],
				ColContent: {"content", "Raw Text", "Feedback", "Issue Description", "Problem"},
			},
		},
		prompt:  []string{ColModelNo, ColContent},
		outputs: []string{ColModule, ColSubModule, ColIssueType, ColSubIssueType, ColSummarizedProblem, ColSentiment},
		role:    "You are analysing voice-of-customer feedback posted by Samsung Members users.",
		rules: []string{
			`"Summarized Problem" is one plain English sentence of at most 20 words.`,
			"Feedback may be in any language; answer in English.",
		},
		vocab: map[string][]string{
			ColModule:       modules,
			ColIssueType:    issueTypes,
			ColSubIssueType: subIssueTypes,
			ColSentiment:    {"Negative", "Neutral", "Positive"},
		},
	})
}
