// rmp-client is an interactive shell for an rmp-server.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xRadioAc7iv/go-rmp/client"
	"github.com/0xRadioAc7iv/go-rmp/internal/shell"
	"github.com/0xRadioAc7iv/go-rmp/internal/validate"
)

var (
	dialTimeout   time.Duration
	required      []string
	localValidate bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rmp-client <host> <port>",
		Short:         "Create, read, update and delete records on an rmp-server",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runClient,
	}

	rootCmd.Flags().DurationVar(&dialTimeout, "dial-timeout", 5*time.Second, "connection timeout (0 waits forever)")
	rootCmd.Flags().StringSliceVar(&required, "required", validate.DefaultRequired, "attributes prompted for on create")
	rootCmd.Flags().BoolVar(&localValidate, "validate", false, "check requests locally before sending them")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[1])
	}

	opts := []client.Option{
		client.WithHost(host),
		client.WithPort(port),
		client.WithDialTimeout(dialTimeout),
	}
	if localValidate {
		opts = append(opts, client.WithLocalValidation(validate.Schema{Required: required}))
	}
	c := client.New(opts...)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Talking to %s\n", c.Addr())
	fmt.Fprintln(out, "Type commands. 'help' for information or 'exit' to quit.")

	return shell.New(c, cmd.InOrStdin(), out, required).Run()
}
