package audit

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// Period is one window of the usage report.
type Period struct {
	Title string
	Since time.Time
	Until time.Time
}

// Periods returns the report windows ending at now: today, the last 7 days
// and the last 30 days, each starting at local midnight.
func Periods(now time.Time) []Period {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return []Period{
		{Title: "Today", Since: startOfDay, Until: now},
		{Title: "Last 7 days", Since: startOfDay.AddDate(0, 0, -7), Until: now},
		{Title: "Last 30 days", Since: startOfDay.AddDate(0, 0, -30), Until: now},
	}
}

// usageSource is the read side of Store.
type usageSource interface {
	Usage(ctx context.Context, since, until time.Time) ([]UsageRow, error)
}

// WriteReport renders one table per period to w.
func WriteReport(ctx context.Context, w io.Writer, src usageSource, now time.Time) error {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	for _, p := range Periods(now) {
		rows, err := src.Usage(ctx, p.Since, p.Until)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Title, err)
		}
		if _, err := lipgloss.Fprintf(w, "%s\n%s\n\n", titleStyle.Render("# "+p.Title), RenderUsage(rows)); err != nil {
			return err
		}
	}
	return nil
}

// RenderUsage formats rows as a table. Applications are shown by file stem,
// so "/Applications/Safari.app" reads "Safari".
func RenderUsage(rows []UsageRow) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	countStyle := cellStyle.Align(lipgloss.Right)

	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, []string{DisplayName(row.Application), strconv.FormatInt(row.Count, 10)})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Application", "Count").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return countStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

// DisplayName returns the file stem of a launch target. URLs are shown as
// they are.
func DisplayName(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	trimmed := strings.TrimRight(target, `/\`)
	base := filepath.Base(strings.ReplaceAll(trimmed, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		return target
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
