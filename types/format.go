package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

func formatFieldsSection(title string, fields []FieldSpec) string {
	if len(fields) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString(title)
	buf.WriteString("\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field ID", "Label", "Type", "Required", "Description", "Options")
	for _, f := range fields {
		required := "no"
		if f.Required {
			required = "yes"
		}
		_ = table.Append(f.FieldID, f.DisplayName(), string(f.Type), required, f.Description, strings.Join(f.Options, " / "))
	}
	_ = table.Render()
	return buf.String()
}

func formatFilledSection(filled map[string]FilledValue) string {
	if len(filled) == 0 {
		return ""
	}
	ids := make([]string, 0, len(filled))
	for id := range filled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var buf strings.Builder
	buf.WriteString("# Already filled:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field ID", "Value")
	for _, id := range ids {
		_ = table.Append(id, filled[id].Value)
	}
	_ = table.Render()
	return buf.String()
}

func formatHistorySection(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Conversation so far:\n")
	for _, turn := range history {
		role := "User"
		if turn.Speaker == SpeakerAgent {
			role = "Assistant"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", role, turn.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatExtractRequest renders the user prompt of an extraction call.
func FormatExtractRequest(req *ExtractRequest, trimmer Trimmer) string {
	history := req.History
	if trimmer != nil {
		history = trimmer.Trim(history)
	}
	sections := []string{
		fmt.Sprintf("# Current Date:\n%s", time.Now().Format(time.RFC3339)),
	}
	if s := formatFieldsSection("# Form fields:", req.Schema.Fields()); s != "" {
		sections = append(sections, s)
	}
	if s := formatFilledSection(req.Filled); s != "" {
		sections = append(sections, s)
	}
	if s := formatHistorySection(history); s != "" {
		sections = append(sections, s)
	}
	if req.PendingFocus != "" {
		if f, ok := req.Schema.Field(req.PendingFocus); ok {
			sections = append(sections, fmt.Sprintf("# Last question asked about:\n%s [%s]", f.DisplayName(), f.FieldID))
		}
	}
	sections = append(sections, fmt.Sprintf("# Latest user message:\n%s", req.Utterance))
	return strings.Join(sections, "\n\n")
}

// FormatComposeRequest renders the user prompt of a question composition call.
func FormatComposeRequest(req *ComposeRequest, trimmer Trimmer) string {
	history := req.History
	if trimmer != nil {
		history = trimmer.Trim(history)
	}
	var sections []string
	if s := formatFieldsSection("# Field to ask about:", []FieldSpec{req.Field}); s != "" {
		sections = append(sections, s)
	}
	if s := formatFieldsSection("# Missing required fields:", req.Missing); s != "" {
		sections = append(sections, s)
	}
	if s := formatFilledSection(req.Filled); s != "" {
		sections = append(sections, s)
	}
	if s := formatHistorySection(history); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n")
}
