package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/sources"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// fmtAmount renders a dollar figure the way headlines do: $2.5B, $50M,
// $750K.
func fmtAmount(v float64) string {
	switch {
	case v >= 1e9:
		return trimZero(fmt.Sprintf("$%.1fB", v/1e9))
	case v >= 1e6:
		return trimZero(fmt.Sprintf("$%.1fM", v/1e6))
	case v >= 1e3:
		return fmt.Sprintf("$%.0fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func trimZero(s string) string {
	if len(s) > 3 && s[len(s)-3:len(s)-1] == ".0" {
		return s[:len(s)-3] + s[len(s)-1:]
	}
	return s
}

func relationshipAmount(rel common.Relationship) string {
	if rel.Metadata == nil {
		return ""
	}
	if v, ok := rel.Metadata["amount"].(float64); ok && v > 0 {
		return fmtAmount(v)
	}
	return ""
}

func endpointName(e *common.Entity, id int64) string {
	if e != nil {
		return e.Name
	}
	return "#" + strconv.FormatInt(id, 10)
}

func renderRelationships(rels []common.Relationship) string {
	t := newTable("Date", "Subject", "Predicate", "Object", "Amount", "Conf", "Source")
	for _, rel := range rels {
		t.Row(
			fmtDate(rel.EventDate),
			endpointName(rel.Subject, rel.SubjectID),
			rel.Predicate,
			endpointName(rel.Object, rel.ObjectID),
			relationshipAmount(rel),
			fmt.Sprintf("%.2f", rel.Confidence),
			sources.Lookup(rel.SourceURL).Name,
		)
	}
	return t.Render()
}

func renderEntities(entities []common.Entity) string {
	t := newTable("ID", "Name", "Type", "Mentions", "Last Seen")
	for _, e := range entities {
		t.Row(
			strconv.FormatInt(e.ID, 10),
			e.Name,
			e.Type,
			strconv.Itoa(e.MentionCount),
			e.LastSeen.Format("2006-01-02"),
		)
	}
	return t.Render()
}
