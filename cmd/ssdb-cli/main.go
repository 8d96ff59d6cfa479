package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pior/ssdb"
)

type options struct {
	host    string
	port    int
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ssdb-cli",
		Short:         "Command line client for SSDB servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.host, "host", "127.0.0.1", "server host")
	root.PersistentFlags().IntVar(&opts.port, "port", 8888, "server port")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "dial and request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log connection events")

	root.AddCommand(
		newGetCmd(opts),
		newSetCmd(opts),
		newDelCmd(opts),
		newIncrCmd(opts),
		newPingCmd(opts),
		newRawCmd(opts),
		newShellCmd(opts),
		newBenchCmd(opts),
	)
	return root
}

// withClient connects, runs fn and closes the connection.
func (o *options) withClient(cmd *cobra.Command, fn func(ctx context.Context, client *ssdb.Client) error) error {
	logger := zap.NewNop()
	if o.verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync()
	}

	client := ssdb.NewClient(o.host, o.port, ssdb.Config{
		DialTimeout: o.timeout,
		Logger:      logger,
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", client.Addr(), err)
	}
	defer client.Close()

	return fn(ctx, client)
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, client *ssdb.Client) error {
				item, err := client.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !item.Found {
					fmt.Fprintln(cmd.OutOrStdout(), "(not found)")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(item.Value))
				return nil
			})
		},
	}
}

func newSetCmd(opts *options) *cobra.Command {
	var ttl time.Duration

	c := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set the value of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, client *ssdb.Client) error {
				var err error
				if ttl > 0 {
					_, err = client.SetX(ctx, args[0], args[1], ttl)
				} else {
					_, err = client.Set(ctx, args[0], args[1])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
	c.Flags().DurationVar(&ttl, "ttl", 0, "expire the key after this duration")
	return c
}

func newDelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, client *ssdb.Client) error {
				if err := client.Del(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newIncrCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "incr <key> [delta]",
		Short: "Increment the integer value of a key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta := int64(1)
			if len(args) == 2 {
				var err error
				delta, err = strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid delta %q: %w", args[1], err)
				}
			}
			return opts.withClient(cmd, func(ctx context.Context, client *ssdb.Client) error {
				n, err := client.Incr(ctx, args[0], delta)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newPingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, client *ssdb.Client) error {
				start := time.Now()
				if err := client.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pong (took %v)\n", time.Since(start))
				return nil
			})
		},
	}
}

func newRawCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <command> [params...]",
		Short: "Send any command and print the response blocks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, client *ssdb.Client) error {
				resp, err := client.SendRequest(ctx, args[0], args[1:]...)
				if err != nil {
					return err
				}
				printBlocks(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func newShellCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session: each line is sent as a command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(_ context.Context, client *ssdb.Client) error {
				return runShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), client, opts.timeout)
			})
		},
	}
}

func runShell(ctx context.Context, in io.Reader, out io.Writer, client *ssdb.Client, timeout time.Duration) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		command := strings.ToLower(parts[0])
		if command == "quit" || command == "exit" {
			return nil
		}

		if !client.IsConnected() {
			if err := client.Connect(ctx); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		resp, err := client.SendRequest(reqCtx, command, parts[1:]...)
		cancel()

		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printBlocks(out, resp)
		fmt.Fprintf(out, "(took %v)\n", time.Since(start))
	}
}

func printBlocks(out io.Writer, resp []string) {
	if len(resp) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	for i, b := range resp {
		fmt.Fprintf(out, "%d) %q\n", i+1, b)
	}
}
