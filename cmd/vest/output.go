package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// parseAmount reads an amount argument: whole tokens by default, base units
// with --raw.
func parseAmount(s string) (decimal.Decimal, error) {
	if rawUnits {
		return model.ParseAmount(s)
	}
	return model.ParseUnits(s, model.TokenDecimals)
}

// formatAmount renders a base-unit amount for humans.
func formatAmount(d decimal.Decimal) string {
	if rawUnits {
		return d.String()
	}
	return model.FormatUnits(d, model.TokenDecimals) + " " + model.TokenSymbol
}

// parseStart accepts "now", unix seconds, or RFC 3339.
func parseStart(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "now" {
		return now.Unix(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid start %q: want now, unix seconds, or RFC 3339", s)
	}
	return t.Unix(), nil
}

// parseVestingDuration accepts Go durations plus a "d" suffix for days,
// returning whole seconds.
func parseVestingDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return n * 86400, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return int64(d / time.Second), nil
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format("2006-01-02 15:04:05")
}

func formatSeconds(sec int64) string {
	if sec%86400 == 0 {
		return fmt.Sprintf("%dd", sec/86400)
	}
	return (time.Duration(sec) * time.Second).String()
}

// vestedFraction is the share of the schedule's duration elapsed at now.
func vestedFraction(s *model.Schedule, now int64) float64 {
	switch {
	case now < s.StartTime:
		return 0
	case now >= s.EndTime() || s.VestingDuration <= 0:
		return 1
	default:
		return float64(now-s.StartTime) / float64(s.VestingDuration)
	}
}

func scheduleState(s *model.Schedule) string {
	switch {
	case !s.IsActive:
		return ui.RenderMuted("inactive")
	case s.FullyReleased():
		return ui.RenderOK("drained")
	default:
		return ui.RenderAccent("active")
	}
}

func printSchedule(w io.Writer, s *model.Schedule, releasable decimal.Decimal, now time.Time) {
	fmt.Fprintf(w, "Beneficiary: %s\n", s.Beneficiary)
	fmt.Fprintf(w, "State:       %s\n", scheduleState(s))
	fmt.Fprintf(w, "Total:       %s\n", formatAmount(s.TotalAmount))
	fmt.Fprintf(w, "Released:    %s\n", formatAmount(s.ReleasedAmount))
	fmt.Fprintf(w, "Releasable:  %s\n", formatAmount(releasable))
	fmt.Fprintf(w, "Start:       %s\n", formatUnix(s.StartTime))
	fmt.Fprintf(w, "End:         %s\n", formatUnix(s.EndTime()))
	fmt.Fprintf(w, "Duration:    %s\n", formatSeconds(s.VestingDuration))
	frac := vestedFraction(s, now.Unix())
	fmt.Fprintf(w, "Vested:      %s %.1f%%\n", ui.Progress(frac, 20), frac*100)
}

func printScheduleTable(w io.Writer, schedules []*model.Schedule) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BENEFICIARY\tSTATE\tTOTAL\tRELEASED\tSTART\tDURATION")
	for _, s := range schedules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Beneficiary.Short(),
			scheduleState(s),
			formatAmount(s.TotalAmount),
			formatAmount(s.ReleasedAmount),
			formatUnix(s.StartTime),
			formatSeconds(s.VestingDuration),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d schedules\n", len(schedules))
}

func printAgreement(w io.Writer, a *model.Agreement) {
	fmt.Fprintf(w, "Signer:    %s\n", a.Signer)
	if !a.IsSigned {
		fmt.Fprintf(w, "Status:    %s\n", ui.RenderWarn("unsigned"))
		return
	}
	fmt.Fprintf(w, "Status:    %s\n", ui.RenderOK("signed"))
	fmt.Fprintf(w, "IPFS hash: %s\n", a.IPFSHash)
	fmt.Fprintf(w, "Signed at: %s\n", formatUnix(a.Timestamp))
}

func printBalances(w io.Writer, balances []*model.Balance) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tBALANCE")
	for _, b := range balances {
		fmt.Fprintf(tw, "%s\t%s\n", b.Address, formatAmount(b.Amount))
	}
	tw.Flush()
}

func printEventLine(w io.Writer, e *model.Event) {
	fmt.Fprintf(w, "%s %s %s %s %s\n",
		ui.RenderMuted(fmt.Sprintf("#%d", e.ID)),
		e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		ui.RenderAccent(e.Topic),
		e.Subject.Short(),
		string(e.Payload),
	)
}
