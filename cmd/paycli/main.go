package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RogueTeam/ilpgateway/decimal"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	err := rootCmd(os.Stdin, os.Stdout).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	server  string
	timeout time.Duration
}

func (o *options) client() *Client {
	return &Client{Server: o.server}
}

func (o *options) context(cmd *cobra.Command) (ctx context.Context, cancel func()) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func rootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:           "paycli",
		Short:         "Client of the Open Payments gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", "http://127.0.0.1:3001", "Gateway base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "Request timeout")

	root.AddCommand(
		initiateCmd(&opts),
		completeCmd(&opts),
		statusCmd(&opts),
		cancelCmd(&opts),
		getCmd(&opts, "stats", "Show session statistics", "/stats"),
		getCmd(&opts, "health", "Check the gateway health", "/health"),
		getCmd(&opts, "config", "Show the public gateway configuration", "/config"),
		payCmd(&opts),
	)
	return root
}

func printJSON(out io.Writer, raw []byte) {
	var buf bytes.Buffer
	if json.Indent(&buf, raw, "", "  ") != nil {
		fmt.Fprintln(out, string(raw))
		return
	}
	fmt.Fprintln(out, buf.String())
}

// parseAmount reads s in minor units. With a scale, s is a major unit
// amount ("5.05" with scale 2 is 505)
func parseAmount(s string, scale uint8) (amount float64, err error) {
	if scale == 0 {
		amount, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
		return amount, nil
	}

	var d decimal.Decimal
	err = d.FromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor, err := d.ExactMinor(scale)
	if err != nil {
		return 0, err
	}
	return float64(minor), nil
}

func initiateCmd(opts *options) *cobra.Command {
	var scale uint8
	cmd := &cobra.Command{
		Use:   "initiate [receiving-wallet] [amount]",
		Short: "Start a payment session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1], scale)
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			raw, _, err := opts.client().Initiate(ctx, args[0], amount)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&scale, "scale", 0, "Read the amount in major units of an asset with this scale")
	return cmd
}

func completeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "complete [session-id]",
		Short: "Complete an authorized session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			raw, err := opts.client().Complete(ctx, args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status [session-id]",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			raw, err := opts.client().Status(ctx, args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

func cancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [session-id]",
		Short: "Cancel a pending session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			raw, err := opts.client().Cancel(ctx, args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

func getCmd(opts *options, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			raw, err := opts.client().Get(ctx, path)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

// payCmd runs the whole flow: initiate, wait for the user to approve the
// grant in the browser, then complete
func payCmd(opts *options) *cobra.Command {
	var scale uint8
	cmd := &cobra.Command{
		Use:   "pay [receiving-wallet] [amount]",
		Short: "Initiate a payment, wait for authorization and complete it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1], scale)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			client := opts.client()

			ctx, cancel := opts.context(cmd)
			_, initiated, err := client.Initiate(ctx, args[0], amount)
			cancel()
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Session:", initiated.SessionId)
			fmt.Fprintln(out, "Debit:", initiated.DebitAmount.Formatted, initiated.DebitAmount.AssetCode)
			fmt.Fprintln(out, "Authorize the payment at:")
			fmt.Fprintln(out, initiated.AuthorizationUrl)
			fmt.Fprint(out, "Press enter once approved, or type \"cancel\": ")

			answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("failed to read answer: %w", err)
			}
			fmt.Fprintln(out)

			ctx, cancel = opts.context(cmd)
			defer cancel()

			var raw []byte
			if strings.TrimSpace(answer) == "cancel" {
				raw, err = client.Cancel(ctx, initiated.SessionId)
			} else {
				raw, err = client.Complete(ctx, initiated.SessionId)
			}
			if err != nil {
				return err
			}
			printJSON(out, raw)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&scale, "scale", 0, "Read the amount in major units of an asset with this scale")
	return cmd
}
