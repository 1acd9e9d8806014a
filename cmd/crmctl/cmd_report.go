package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"crm/internal/core"
)

func runStats(cmd *cobra.Command, args []string) error {
	crm, reports, err := openServices()
	if err != nil {
		return err
	}
	defer crm.Close()

	metrics, err := reports.DashboardStats(cmd.Context(), time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(metrics)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE\tCHANGE\tTREND")
	for _, m := range metrics {
		change := fmt.Sprintf("%+.1f%%", m.ChangePercent)
		if m.PointChange {
			change = fmt.Sprintf("%+.1f pts", m.ChangePercent)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Label, metricValue(m), change, m.Trend)
	}
	return tw.Flush()
}

func metricValue(m core.TrendMetric) string {
	switch m.Label {
	case core.LabelRevenue:
		return fmt.Sprintf("$%.2f", m.Value)
	case core.LabelConversionRate:
		return fmt.Sprintf("%.1f%%", m.Value)
	default:
		return fmt.Sprintf("%.0f", m.Value)
	}
}

func runCalendar(cmd *cobra.Command, args []string) error {
	crm, reports, err := openServices()
	if err != nil {
		return err
	}
	defer crm.Close()

	now := time.Now().In(reports.Location())
	year, month := now.Year(), int(now.Month())
	if calYear != 0 {
		year = calYear
	}
	if calMonth != 0 {
		month = calMonth
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("--month must be between 1 and 12, got %d", month)
	}

	days, err := reports.Calendar(cmd.Context(), year, month-1, now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d\n", time.Month(month), year)
	fmt.Fprintln(out, " Su  Mo  Tu  We  Th  Fr  Sa")

	var agenda []core.Appointment
	for i, d := range days {
		cell := "   "
		if d.IsCurrentMonth {
			cell = fmt.Sprintf("%3d", d.DayOfMonth)
			agenda = append(agenda, d.Appointments...)
		}
		mark := " "
		switch {
		case len(d.Appointments) > 0 && d.IsCurrentMonth:
			mark = "*"
		case d.IsToday:
			mark = "<"
		}
		fmt.Fprint(out, cell+mark)
		if i%7 == 6 {
			fmt.Fprintln(out)
		}
	}

	if len(agenda) == 0 {
		fmt.Fprintln(out, "\nNo appointments.")
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, a := range agenda {
		local := a.Date.In(reports.Location())
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			local.Format("Mon Jan 2"), local.Format("3:04 PM"), a.Type, strings.TrimSpace(a.Notes))
	}
	return tw.Flush()
}
