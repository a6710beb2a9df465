package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// ProfilesConfig holds all named server profiles and tracks the active one.
type ProfilesConfig struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named server connection.
type Profile struct {
	HTTPURL  string        `toml:"http_url,omitempty"`
	GRPCAddr string        `toml:"grpc_addr,omitempty"`
	Token    string        `toml:"token,omitempty"`
	Caller   model.Address `toml:"caller,omitempty"`
	NATSURL  string        `toml:"nats_url,omitempty"`
}

func profilesPath() (string, error) {
	if p := os.Getenv("VESTING_PROFILES"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "vesting", "profiles.toml"), nil
}

func loadProfiles() (ProfilesConfig, error) {
	path, err := profilesPath()
	if err != nil {
		return ProfilesConfig{}, err
	}
	var cfg ProfilesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return ProfilesConfig{Profiles: map[string]Profile{}}, nil
		}
		return ProfilesConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

func saveProfiles(cfg ProfilesConfig) error {
	path, err := profilesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// The active profile is read once per process; flag defaults depend on it.
var (
	profileOnce   sync.Once
	cachedProfile Profile
)

func activeProfile() Profile {
	profileOnce.Do(func() {
		cfg, err := loadProfiles()
		if err != nil || cfg.Active == "" {
			return
		}
		cachedProfile = cfg.Profiles[cfg.Active]
	})
	return cachedProfile
}

var profileCmd = &cobra.Command{
	Use:               "profile",
	Short:             "Manage named server profiles",
	GroupID:           "system",
	PersistentPreRunE: skipConnect,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := Profile{}
		p.HTTPURL, _ = cmd.Flags().GetString("http")
		p.GRPCAddr, _ = cmd.Flags().GetString("grpc")
		p.Token, _ = cmd.Flags().GetString("with-token")
		p.NATSURL, _ = cmd.Flags().GetString("nats")
		if s, _ := cmd.Flags().GetString("caller"); s != "" {
			addr, err := model.ParseAddress(s)
			if err != nil {
				return fmt.Errorf("--caller: %w", err)
			}
			p.Caller = addr
		}

		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		cfg.Profiles[args[0]] = p
		if cfg.Active == "" {
			cfg.Active = args[0]
		}
		if err := saveProfiles(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q saved\n", args[0])
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[args[0]]; !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		cfg.Active = args[0]
		if err := saveProfiles(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active profile set to %q\n", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[args[0]]; !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		delete(cfg.Profiles, args[0])
		if cfg.Active == args[0] {
			cfg.Active = ""
		}
		if err := saveProfiles(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q removed\n", args[0])
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		if len(cfg.Profiles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no profiles configured")
			return nil
		}
		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tHTTP\tGRPC\tCALLER\tTOKEN")
		for _, name := range names {
			p := cfg.Profiles[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", marker, name, p.HTTPURL, p.GRPCAddr, p.Caller.Short(), maskToken(p.Token))
		}
		return w.Flush()
	},
}

func maskToken(t string) string {
	if len(t) > 8 {
		return t[:8] + "..."
	}
	return t
}

func init() {
	profileAddCmd.Flags().String("http", "", "HTTP server URL")
	profileAddCmd.Flags().String("grpc", "", "gRPC server address")
	profileAddCmd.Flags().String("with-token", "", "bearer token")
	profileAddCmd.Flags().String("caller", "", "caller address for servers without a keyring")
	profileAddCmd.Flags().String("nats", "", "NATS URL for event watching")

	profileCmd.AddCommand(profileAddCmd, profileUseCmd, profileRemoveCmd, profileListCmd)
}
