package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/client"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/ui"
)

var (
	httpURL    string
	grpcAddr   string
	transport  string
	token      string
	callerFlag string
	jsonOutput bool
	rawUnits   bool

	vestClient client.VestingClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("VESTING_HTTP_URL"); s != "" {
		return s
	}
	if p := activeProfile(); p.HTTPURL != "" {
		return p.HTTPURL
	}
	return "http://localhost:8080"
}

func defaultGRPCAddr() string {
	if s := os.Getenv("VESTING_SERVER"); s != "" {
		return s
	}
	if p := activeProfile(); p.GRPCAddr != "" {
		return p.GRPCAddr
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("VESTING_TOKEN"); s != "" {
		return s
	}
	return activeProfile().Token
}

func defaultCaller() string {
	if s := os.Getenv("VESTING_CALLER"); s != "" {
		return s
	}
	return activeProfile().Caller.String()
}

// connect builds the client for the selected transport.
func connect() (client.VestingClient, error) {
	opts := []client.Option{client.WithToken(token)}
	if callerFlag != "" {
		addr, err := model.ParseAddress(callerFlag)
		if err != nil {
			return nil, fmt.Errorf("--as: %w", err)
		}
		opts = append(opts, client.WithCaller(addr))
	}
	switch transport {
	case "http":
		return client.NewHTTPClient(httpURL, opts...), nil
	case "grpc":
		c, err := client.NewGRPCClient(grpcAddr, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
	}
}

// skipConnect is used by commands that never talk to the server.
func skipConnect(*cobra.Command, []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "vest <command>",
	Short:         "CLI for the token vesting ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		vestClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if vestClient != nil {
			vestClient.Close()
		}
	},
}

func init() {
	ui.SetColor(ui.ShouldUseColor(os.Stdout))

	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "server", defaultGRPCAddr(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().StringVar(&callerFlag, "as", defaultCaller(), "caller address for servers without a keyring")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&rawUnits, "raw", false, "read and print amounts in base units instead of whole tokens")

	rootCmd.AddGroup(
		&cobra.Group{ID: "vesting", Title: "Vesting:"},
		&cobra.Group{ID: "token", Title: "Token:"},
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Vesting
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(agreementCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(ownerCmd)

	// Token
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(allowanceCmd)

	// Events
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(snapshotCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(keyringCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error:"), err)
		os.Exit(1)
	}
}
