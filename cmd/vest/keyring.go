package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/idgen"
	"github.com/alfredjeanlab/vesting/internal/model"
)

var keyringCmd = &cobra.Command{
	Use:               "keyring",
	Short:             "Manage the server's bearer-token keyring file",
	GroupID:           "system",
	PersistentPreRunE: skipConnect,
}

func keyringPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = os.Getenv("VESTING_KEYRING")
	}
	if path == "" {
		return "", errors.New("no keyring file: pass --file or set VESTING_KEYRING")
	}
	return path, nil
}

// loadKeyringFile reads path, treating a missing file as an empty keyring.
func loadKeyringFile(path string) (*config.Keyring, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &config.Keyring{}, nil
	}
	return config.LoadKeyring(path)
}

var keyringAddCmd = &cobra.Command{
	Use:   "add <name> <address>",
	Short: "Issue a new token for an address and print it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := keyringPath(cmd)
		if err != nil {
			return err
		}
		addr, err := model.ParseAddress(args[1])
		if err != nil {
			return err
		}
		if addr.IsZero() {
			return errors.New("address must not be the zero address")
		}
		k, err := loadKeyringFile(path)
		if err != nil {
			return err
		}
		tok, err := idgen.Token()
		if err != nil {
			return err
		}
		k.Add(config.Identity{Name: args[0], Token: tok, Address: addr})
		if err := k.Save(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var keyringListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keyring identities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := keyringPath(cmd)
		if err != nil {
			return err
		}
		k, err := loadKeyringFile(path)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tTOKEN")
		for _, id := range k.Identities {
			fmt.Fprintf(w, "%s\t%s\t%s\n", id.Name, id.Address, maskToken(id.Token))
		}
		return w.Flush()
	},
}

func init() {
	keyringCmd.PersistentFlags().String("file", "", "keyring file (default $VESTING_KEYRING)")
	keyringCmd.AddCommand(keyringAddCmd, keyringListCmd)
}
