package presenter

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rokstats/rokstats/internal/application/query"
)

// TableOptions controls table rendering.
type TableOptions struct {
	// Compact renders counters as 1.2B instead of 1,234,567,890.
	Compact bool
}

// SortValue returns the value a record was ranked by.
func SortValue(r query.RecordDTO, key string) string {
	if v, ok := r.Scores[key]; ok {
		return v
	}
	if metric, ok := strings.CutPrefix(key, "delta_"); ok {
		return r.Deltas[metric]
	}
	return r.Metrics[key]
}

// RankingTable renders one page of a ranking.
func RankingTable(res *query.RankEntitiesResult, opts TableOptions) string {
	number := Comma
	if opts.Compact {
		number = Compact
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	sortKey := res.Sort.Key
	tbl.AppendHeader(table.Row{"#", "ID", "Name", "Alliance", "Power", sortKey})

	for _, item := range res.Items {
		value := SortValue(item, sortKey)
		if strings.HasPrefix(sortKey, "delta_") {
			value = Signed(value, opts.Compact)
		} else {
			value = number(value)
		}
		tbl.AppendRow(table.Row{
			item.Rank,
			item.EntityID,
			item.Name,
			item.Alliance,
			number(item.Metrics["power"]),
			value,
		})
	}

	footer := fmt.Sprintf("page %d/%d, %d entities", res.Page.Page, res.Page.TotalPages, res.Page.TotalItems)
	if res.Sort.Fallback {
		footer += fmt.Sprintf(", unknown sort key %q", res.Sort.Requested)
	}
	return tbl.Render() + "\n" + footer
}

// DashboardTable renders a group summary.
func DashboardTable(res *query.GroupDashboardResult, opts TableOptions) string {
	number := Comma
	if opts.Compact {
		number = Compact
	}

	title := "kingdoms"
	if res.Group != "" {
		title = "kingdom " + res.Group
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendRows([]table.Row{
		{"current", number(res.TotalCurrent)},
		{"previous", number(res.TotalPrevious)},
		{"change", Signed(res.TotalChange, opts.Compact)},
		{"change %", Percent(res.TotalChangePercent)},
	})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	return fmt.Sprintf("%s, %s (%d entities)\n", title, res.Metric, res.EntityCount) + tbl.Render()
}
