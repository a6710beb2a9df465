package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/model"
)

var releaseCmd = &cobra.Command{
	Use:     "release",
	Short:   "Release the caller's vested tokens",
	GroupID: "vesting",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := vestClient.Release(context.Background())
		if err != nil {
			return fmt.Errorf("releasing: %w", err)
		}
		if jsonOutput {
			return printJSON(api.AmountResponse{Amount: amount})
		}
		fmt.Printf("Released %s\n", formatAmount(amount))
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:     "withdraw <amount>",
	Short:   "Withdraw tokens from custody to the owner (owner only)",
	GroupID: "vesting",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		if err := vestClient.EmergencyWithdraw(context.Background(), amount); err != nil {
			return fmt.Errorf("withdrawing: %w", err)
		}
		if jsonOutput {
			return printJSON(api.AmountResponse{Amount: amount})
		}
		fmt.Printf("Withdrew %s\n", formatAmount(amount))
		return nil
	},
}

var ownerCmd = &cobra.Command{
	Use:     "owner",
	Short:   "Show or transfer ledger ownership",
	GroupID: "vesting",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := vestClient.Owner(context.Background())
		if err != nil {
			return fmt.Errorf("getting owner: %w", err)
		}
		return printOwner(resp)
	},
}

var ownerTransferCmd = &cobra.Command{
	Use:   "transfer <new-owner>",
	Short: "Hand the administrator role to another address (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newOwner, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		resp, err := vestClient.TransferOwnership(context.Background(), newOwner)
		if err != nil {
			return fmt.Errorf("transferring ownership: %w", err)
		}
		return printOwner(resp)
	},
}

func printOwner(resp *api.OwnerResponse) error {
	if jsonOutput {
		return printJSON(resp)
	}
	fmt.Printf("Owner:   %s\n", resp.Owner)
	fmt.Printf("Custody: %s\n", resp.Custody)
	return nil
}

func init() {
	ownerCmd.AddCommand(ownerTransferCmd)
}
