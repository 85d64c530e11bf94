package console

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oicur0t/ratelog/internal/config"
	"github.com/oicur0t/ratelog/pkg/models"
	"github.com/oicur0t/ratelog/pkg/mtls"
)

// rootFlags holds flag values for the root command
type rootFlags struct {
	configPath string
	url        string
	output     string
	timeout    time.Duration
}

// NewRootCommand builds the ratelog console command tree writing to out
func NewRootCommand(out io.Writer) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "ratelog",
		Short:         "Query and feed a running ratelogd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to console configuration file")
	root.PersistentFlags().StringVar(&flags.url, "url", "", "Daemon base URL")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json or yaml")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0, "Request timeout")

	root.AddCommand(
		buildListCommand(&flags),
		buildLogCommand(&flags),
		buildExecCommand(&flags),
		buildCommandsCommand(&flags),
	)

	return root
}

func buildListCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [filter...]",
		Short: "Print buffered lines, optionally only those containing filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd, flags, append([]string{"list"}, args...))
		},
	}
}

func buildLogCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "log <words...>",
		Short: "Append a line to the buffer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd, flags, append([]string{"log"}, args...))
		},
	}
}

func buildExecCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <line>",
		Short: "Send a raw command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newClient(flags)
			if err != nil {
				return err
			}
			resp, err := client.Run(cmd.Context(), strings.Join(args, " "))
			return finish(cmd, cfg, resp, err)
		},
	}
}

func buildCommandsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the commands the daemon accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newClient(flags)
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return Print(cmd.OutOrStdout(), &models.CommandResponse{
				Command: "commands",
				OK:      true,
				Lines:   health.Commands,
			}, cfg.Output)
		},
	}
}

func runTokens(cmd *cobra.Command, flags *rootFlags, tokens []string) error {
	client, cfg, err := newClient(flags)
	if err != nil {
		return err
	}
	resp, err := client.RunTokens(cmd.Context(), tokens)
	return finish(cmd, cfg, resp, err)
}

func finish(cmd *cobra.Command, cfg *config.ConsoleConfig, resp *models.CommandResponse, err error) error {
	if err != nil {
		return err
	}
	if err := Print(cmd.OutOrStdout(), resp, cfg.Output); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s: command failed", resp.Command)
	}
	return nil
}

// newClient loads the console config and applies flag overrides
func newClient(flags *rootFlags) (*Client, *config.ConsoleConfig, error) {
	cfg, err := config.LoadConsoleConfig(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if flags.url != "" {
		cfg.URL = flags.url
	}
	if flags.output != "" {
		cfg.Output = flags.output
	}
	if flags.timeout > 0 {
		cfg.Timeout = flags.timeout
	}

	var tlsConfig *tls.Config
	if cfg.MTLS.Enabled {
		tlsConfig, err = mtls.LoadClientTLSConfig(cfg.MTLS.CACert, cfg.MTLS.ClientCert, cfg.MTLS.ClientKey, cfg.MTLS.ServerName)
		if err != nil {
			return nil, nil, err
		}
	}

	return NewClient(cfg.URL, tlsConfig, cfg.Timeout, cfg.MaxRetries, nil), cfg, nil
}

// Execute runs the console with args
func Execute(ctx context.Context, args []string, out io.Writer) error {
	root := NewRootCommand(out)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
