package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/model"
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Short:   "Create and inspect vesting schedules",
	GroupID: "vesting",
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <beneficiary> <amount>",
	Short: "Create a linear vesting schedule (owner only)",
	Long: `Create a linear vesting schedule for a beneficiary.

The custody account must have approved the ledger for at least <amount>;
the tokens move into escrow when the schedule is created.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		beneficiary, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		startStr, _ := cmd.Flags().GetString("start")
		durStr, _ := cmd.Flags().GetString("duration")

		start, err := parseStart(startStr, time.Now())
		if err != nil {
			return err
		}
		duration, err := parseVestingDuration(durStr)
		if err != nil {
			return err
		}

		sched, err := vestClient.CreateSchedule(context.Background(), &api.CreateScheduleRequest{
			Beneficiary:     beneficiary,
			TotalAmount:     amount,
			StartTime:       start,
			VestingDuration: duration,
		})
		if err != nil {
			return fmt.Errorf("creating schedule: %w", err)
		}
		if jsonOutput {
			return printJSON(sched)
		}
		fmt.Printf("Created schedule for %s: %s over %s\n",
			sched.Beneficiary, formatAmount(sched.TotalAmount), formatSeconds(sched.VestingDuration))
		return nil
	},
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show [<beneficiary>]",
	Short: "Show a schedule (defaults to the caller's)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		beneficiary, err := addressArg(ctx, args)
		if err != nil {
			return err
		}
		sched, err := vestClient.GetSchedule(ctx, beneficiary)
		if err != nil {
			return fmt.Errorf("getting schedule: %w", err)
		}
		releasable, err := vestClient.Releasable(ctx, beneficiary)
		if err != nil {
			return fmt.Errorf("getting releasable amount: %w", err)
		}
		if jsonOutput {
			return printJSON(struct {
				*model.Schedule
				Releasable decimal.Decimal `json:"releasable"`
			}{sched, releasable})
		}
		if !sched.IsActive && sched.TotalAmount.IsZero() {
			fmt.Printf("No schedule for %s\n", beneficiary)
			return nil
		}
		printSchedule(os.Stdout, sched, releasable, time.Now())
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter model.ScheduleFilter
		filter.ActiveOnly, _ = cmd.Flags().GetBool("active")
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		filter.Offset, _ = cmd.Flags().GetInt("offset")

		schedules, err := vestClient.ListSchedules(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("listing schedules: %w", err)
		}
		if jsonOutput {
			return printJSON(schedules)
		}
		printScheduleTable(os.Stdout, schedules)
		return nil
	},
}

var scheduleReleasableCmd = &cobra.Command{
	Use:   "releasable [<beneficiary>]",
	Short: "Show the amount that can be released now",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		beneficiary, err := addressArg(ctx, args)
		if err != nil {
			return err
		}
		amount, err := vestClient.Releasable(ctx, beneficiary)
		if err != nil {
			return fmt.Errorf("getting releasable amount: %w", err)
		}
		if jsonOutput {
			return printJSON(api.AmountResponse{Amount: amount})
		}
		fmt.Println(formatAmount(amount))
		return nil
	},
}

// addressArg returns the address in args, or the caller's own address.
func addressArg(ctx context.Context, args []string) (model.Address, error) {
	if len(args) > 0 {
		return model.ParseAddress(args[0])
	}
	me, err := vestClient.WhoAmI(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving caller: %w", err)
	}
	return me.Address, nil
}

func init() {
	scheduleCreateCmd.Flags().String("start", "now", "start time: now, unix seconds, or RFC 3339")
	scheduleCreateCmd.Flags().String("duration", "365d", "vesting duration, e.g. 30d or 720h")

	scheduleListCmd.Flags().Bool("active", false, "only active schedules")
	scheduleListCmd.Flags().Int("limit", 0, "maximum number of schedules (0 = all)")
	scheduleListCmd.Flags().Int("offset", 0, "number of schedules to skip")

	scheduleCmd.AddCommand(scheduleCreateCmd, scheduleShowCmd, scheduleListCmd, scheduleReleasableCmd)
}
