package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/ui"
)

var agreementCmd = &cobra.Command{
	Use:     "agreement",
	Short:   "Sign and inspect vesting agreements",
	GroupID: "vesting",
}

var agreementSignCmd = &cobra.Command{
	Use:   "sign <ipfs-hash>",
	Short: "Record the caller's signature on an agreement document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := vestClient.SignAgreement(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("signing agreement: %w", err)
		}
		if jsonOutput {
			return printJSON(a)
		}
		fmt.Printf("%s %s signed %s\n", ui.RenderOK("✓"), a.Signer, a.IPFSHash)
		return nil
	},
}

var agreementShowCmd = &cobra.Command{
	Use:   "show [<signer>]",
	Short: "Show an agreement record (defaults to the caller's)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		signer, err := addressArg(ctx, args)
		if err != nil {
			return err
		}
		a, err := vestClient.GetAgreement(ctx, signer)
		if err != nil {
			return fmt.Errorf("getting agreement: %w", err)
		}
		if jsonOutput {
			return printJSON(a)
		}
		if a.Signer.IsZero() {
			a.Signer = signer
		}
		printAgreement(os.Stdout, a)
		return nil
	},
}

var agreementListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signed agreements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agreements, err := vestClient.ListAgreements(context.Background())
		if err != nil {
			return fmt.Errorf("listing agreements: %w", err)
		}
		if jsonOutput {
			return printJSON(agreements)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SIGNER\tIPFS HASH\tSIGNED AT")
		for _, a := range agreements {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Signer, a.IPFSHash, formatUnix(a.Timestamp))
		}
		w.Flush()
		fmt.Printf("\n%d agreements\n", len(agreements))
		return nil
	},
}

func init() {
	agreementCmd.AddCommand(agreementSignCmd, agreementShowCmd, agreementListCmd)
}
