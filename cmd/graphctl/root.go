package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/waabox/graphctl/internal/config"
	"github.com/waabox/graphctl/internal/console"
	"github.com/waabox/graphctl/internal/domain"
	"github.com/waabox/graphctl/internal/graph"
	"github.com/waabox/graphctl/internal/logging"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	envFile    string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "graphctl",
		Short: "List Microsoft Graph users with a client-credentials or device-code token",
		Long: `graphctl acquires an OAuth2 access token from the Microsoft identity platform
and uses it to list directory users from Microsoft Graph.

The application id, tenant id and (for client-credentials) secret are read from
AZURE_CLIENT_ID, AZURE_TENANT_ID and AZURE_CLIENT_SECRET, a .env file, or the
config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to a .env file (ignored when missing)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newUsersCmd(opts, stdout, stderr),
		newConfigCmd(opts, stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

// load reads .env, the config file and the environment, and builds the logger.
func (o *globalOptions) load(stderr io.Writer) (config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(stderr, logging.Config{Level: cfg.LogLevel, Verbose: o.verbose})
	return cfg, logger, nil
}

func newUsersCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		flow string
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users (id and display name)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(stderr)
			if err != nil {
				return err
			}
			selected := cfg.FlowOrDefault()
			if flow != "" {
				selected = domain.Flow(flow)
			}
			if err := cfg.Validate(selected); err != nil {
				return err
			}
			logger.Debug("configuration loaded", "flow", selected, "credentials", cfg.Credentials().String())

			ctx := cmd.Context()
			printer := console.New(stdout, stderr)
			httpClient := &http.Client{Timeout: cfg.TimeoutOrDefault()}

			tokens, err := newRegistry(cfg, httpClient, printer, logger).Select(selected)
			if err != nil {
				return err
			}
			tok, err := tokens.Token(ctx)
			if err != nil {
				return err
			}
			if selected == domain.FlowDeviceCode {
				fmt.Fprintln(stderr, "Authenticated.")
			}

			client := graph.NewClient(cfg.Graph.URL, httpClient, logger)
			fetch := client.FetchUsers
			if all {
				fetch = client.FetchAllUsers
			}
			users, err := fetch(ctx, tok)
			if err != nil {
				return err
			}
			printer.Users(users)
			return nil
		},
	}
	cmd.Flags().StringVar(&flow, "flow", "", "grant flow: "+flowNames()+" (default from config)")
	cmd.Flags().BoolVar(&all, "all", false, "follow @odata.nextLink and list every page")
	return cmd
}

func newConfigCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the graphctl config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", opts.configPath, err)
			}
			if err := config.Save(opts.configPath, config.Defaults()); err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Wrote %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with the secret masked",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(stderr)
			if err != nil {
				return err
			}
			if cfg.Azure.ClientSecret != "" {
				cfg.Azure.ClientSecret = "<redacted>"
			}
			return toml.NewEncoder(stdout).Encode(cfg)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(stdout, "graphctl", version)
		},
	}
}
