package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/api"
	vestsync "github.com/alfredjeanlab/vesting/internal/sync"
	"github.com/alfredjeanlab/vesting/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the vesting service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := vestClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(api.HealthResponse{Status: status}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health: %s\n", status)
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the address the server resolves for this caller",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		me, err := vestClient.WhoAmI(context.Background())
		if err != nil {
			return fmt.Errorf("whoami: %w", err)
		}
		if jsonOutput {
			return printJSON(me)
		}
		role := ""
		if me.IsOwner {
			role = " " + ui.RenderAccent("(owner)")
		}
		fmt.Printf("%s%s\n", me.Address, role)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Short:   "Export the whole ledger as JSONL",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" && path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if jsonOutput {
			snap, err := vestClient.Snapshot(context.Background())
			if err != nil {
				return fmt.Errorf("getting snapshot: %w", err)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		return vestsync.ExportJSONL(context.Background(), vestClient, out)
	},
}

func init() {
	snapshotCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
}
