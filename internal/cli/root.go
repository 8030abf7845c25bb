// Package cli builds the awxctl command tree. Every resource command
// is generated from the resource catalog, so adding a resource there
// is all it takes to surface it on the command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rflorenc/awxctl/internal/config"
	"github.com/rflorenc/awxctl/internal/dispatch"
	"github.com/rflorenc/awxctl/internal/platform"
	"github.com/rflorenc/awxctl/internal/prompt"
	"github.com/rflorenc/awxctl/internal/resource"
)

// rootFlags are the connection and behavior settings every subcommand
// shares. Only flags the operator actually set are merged into the
// configuration, so file values keep their precedence.
type rootFlags struct {
	host     string
	username string
	password string
	insecure bool
	jsonOut  bool
	noInput  bool
}

// NewRootCmd builds the full command tree.
func NewRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "awxctl",
		Short:         "Command-line client for AWX and Ansible Automation Platform",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.host, "server", "", "Controller host (default from config)")
	pf.StringVar(&flags.username, "username", "", "Controller username")
	pf.StringVar(&flags.password, "password", "", "Controller password")
	pf.BoolVar(&flags.insecure, "insecure", false, "Skip TLS certificate verification")
	pf.BoolVar(&flags.jsonOut, "json", false, "Output JSON instead of tables")
	pf.BoolVar(&flags.noInput, "no-input", false, "Never prompt; fail on missing values")

	for _, name := range resource.Names() {
		def, _ := resource.Lookup(name)
		root.AddCommand(newResourceCmd(def, flags))
	}
	root.AddCommand(newVersionCmd(flags, version))
	root.AddCommand(newConfigCmd(flags))

	return root
}

// settings merges configuration files with the flags the operator set
// on this invocation.
func settings(cmd *cobra.Command, flags *rootFlags) (*config.Settings, error) {
	runtime := map[string]string{}
	if cmd.Flags().Changed("server") {
		runtime["host"] = flags.host
	}
	if cmd.Flags().Changed("username") {
		runtime["username"] = flags.username
	}
	if cmd.Flags().Changed("password") {
		runtime["password"] = flags.password
	}
	if flags.insecure {
		runtime["verify_ssl"] = "false"
	}
	if flags.jsonOut {
		runtime["format"] = "json"
	}
	return config.Load(runtime)
}

// connect resolves settings and builds the dispatcher for a command.
// The API prefix is discovered on first use and cached on the session.
func connect(cmd *cobra.Command, flags *rootFlags) (*dispatch.Dispatcher, *config.Settings, *Output, error) {
	cfg, err := settings(cmd, flags)
	if err != nil {
		return nil, nil, nil, err
	}
	client := platform.NewClient(platform.NewSession(cfg))
	platform.Discover(client)
	return dispatch.New(client), cfg, NewOutput(cfg.Get("format") == "json"), nil
}

// provider picks the input source for this invocation.
func provider(flags *rootFlags) prompt.ValueProvider {
	if flags.noInput {
		return prompt.NonInteractive{}
	}
	return prompt.NewTerminal()
}

func newVersionCmd(flags *rootFlags, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and controller versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "awxctl %s\n", version)

			cfg, err := settings(cmd, flags)
			if err != nil {
				return err
			}
			client := platform.NewClient(platform.NewSession(cfg))
			platform.Discover(client)
			remote, err := client.RemoteVersion()
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "controller unreachable: %v\n", err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "controller %s\n", remote)
			return nil
		},
	}
}

// newConfigCmd lists the effective settings and where each one came
// from, which is the fastest way to debug a precedence surprise.
func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show effective settings and their sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settings(cmd, flags)
			if err != nil {
				return err
			}
			out := NewOutput(cfg.Get("format") == "json")

			type entry struct {
				Key    string `json:"key"`
				Value  string `json:"value"`
				Source string `json:"source"`
			}
			var entries []entry
			var rows [][]string
			for _, key := range cfg.Keys() {
				value := cfg.Get(key)
				if key == "password" && value != "" {
					value = "********"
				}
				src, _ := cfg.Origin(key)
				entries = append(entries, entry{key, value, src.String()})
				rows = append(rows, []string{key, value, src.String()})
			}
			if cfg.Get("format") == "json" {
				out.JSON(entries)
				return nil
			}
			out.Table([]string{"KEY", "VALUE", "SOURCE"}, rows)
			return nil
		},
	}
}
