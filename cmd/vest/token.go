package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/model"
)

var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Token metadata and transfers",
	GroupID: "token",
}

var tokenInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show token name, symbol, decimals and supply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := vestClient.TokenInfo(context.Background())
		if err != nil {
			return fmt.Errorf("getting token info: %w", err)
		}
		if jsonOutput {
			return printJSON(info)
		}
		fmt.Printf("Name:         %s\n", info.Name)
		fmt.Printf("Symbol:       %s\n", info.Symbol)
		fmt.Printf("Decimals:     %d\n", info.Decimals)
		fmt.Printf("Total supply: %s\n", formatAmount(info.TotalSupply))
		return nil
	},
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint <to> <amount>",
	Short: "Mint new tokens (owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		bal, err := vestClient.Mint(context.Background(), to, amount)
		if err != nil {
			return fmt.Errorf("minting: %w", err)
		}
		return printBalance(bal)
	},
}

var tokenApproveCmd = &cobra.Command{
	Use:   "approve <spender> <amount>",
	Short: "Set the amount a spender may move from the caller's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		spender, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		a, err := vestClient.Approve(context.Background(), spender, amount)
		if err != nil {
			return fmt.Errorf("approving: %w", err)
		}
		return printAllowance(a)
	},
}

var tokenTransferCmd = &cobra.Command{
	Use:   "transfer <to> <amount>",
	Short: "Transfer tokens from the caller",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		bal, err := vestClient.Transfer(context.Background(), to, amount)
		if err != nil {
			return fmt.Errorf("transferring: %w", err)
		}
		return printBalance(bal)
	},
}

var tokenFaucetCmd = &cobra.Command{
	Use:   "faucet <amount>",
	Short: "Mint test tokens to the caller, up to the server's faucet limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		bal, err := vestClient.Faucet(context.Background(), amount)
		if err != nil {
			return fmt.Errorf("faucet: %w", err)
		}
		return printBalance(bal)
	},
}

var balanceCmd = &cobra.Command{
	Use:     "balance [<address>]",
	Short:   "Show a token balance (defaults to the caller's)",
	GroupID: "token",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if all, _ := cmd.Flags().GetBool("all"); all {
			balances, err := vestClient.Balances(ctx)
			if err != nil {
				return fmt.Errorf("listing balances: %w", err)
			}
			if jsonOutput {
				return printJSON(balances)
			}
			printBalances(os.Stdout, balances)
			return nil
		}
		addr, err := addressArg(ctx, args)
		if err != nil {
			return err
		}
		bal, err := vestClient.Balance(ctx, addr)
		if err != nil {
			return fmt.Errorf("getting balance: %w", err)
		}
		return printBalance(bal)
	},
}

var allowanceCmd = &cobra.Command{
	Use:     "allowance <owner> <spender>",
	Short:   "Show how much spender may move from owner's balance",
	GroupID: "token",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		spender, err := model.ParseAddress(args[1])
		if err != nil {
			return err
		}
		a, err := vestClient.Allowance(context.Background(), owner, spender)
		if err != nil {
			return fmt.Errorf("getting allowance: %w", err)
		}
		return printAllowance(a)
	},
}

func printBalance(b *model.Balance) error {
	if jsonOutput {
		return printJSON(b)
	}
	fmt.Printf("%s  %s\n", b.Address, formatAmount(b.Amount))
	return nil
}

func printAllowance(a *model.Allowance) error {
	if jsonOutput {
		return printJSON(a)
	}
	fmt.Printf("%s may spend %s from %s\n", a.Spender, formatAmount(a.Amount), a.Owner)
	return nil
}

func init() {
	balanceCmd.Flags().Bool("all", false, "list every non-zero balance")

	tokenCmd.AddCommand(tokenInfoCmd, tokenMintCmd, tokenApproveCmd, tokenTransferCmd, tokenFaucetCmd)
}
