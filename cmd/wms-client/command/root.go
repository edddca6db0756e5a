package command

// root.go defines the root command for wmsctl and the helpers every
// subcommand shares: dialing, request/response printing.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wmshub/internal/microservices/tcp"
	"wmshub/internal/microservices/tcp/frame"
)

var (
	serverAddr string        // global flag for the warehouse server address
	timeout    time.Duration // dial and per-request deadline
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wmsctl",
	Short: "wmsctl - warehouse tracking protocol client",
	Long: `wmsctl talks to a warehouse server over the binary tracking protocol.
It can register, process, load and cancel packages, query package and floor
status, and watch live package updates.

Use "wmsctl command -h" to see the flags of each command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:5003", "warehouse server address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "dial and request timeout")
}

func dial(ctx context.Context) (*tcp.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return tcp.Dial(ctx, serverAddr)
}

// roundTrip sends one request and prints the response payload. ERROR
// frames come back as a Go error.
func roundTrip(cmd *cobra.Command, mt tcp.MessageType, body any) error {
	c, err := dial(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	f, err := c.Request(mt, body, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if tcp.MessageType(f.Type) == tcp.MsgError {
		var e tcp.ErrorResponse
		if jerr := json.Unmarshal(f.Payload, &e); jerr != nil {
			return fmt.Errorf("server error: %s", f.Payload)
		}
		return errors.New("✗ " + e.Error)
	}
	return printFrame(cmd, f)
}

func printFrame(cmd *cobra.Command, f frame.Frame) error {
	var out bytes.Buffer
	if err := json.Indent(&out, f.Payload, "", "  "); err != nil {
		out.Reset()
		out.Write(f.Payload)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", tcp.MessageType(f.Type), out.String())
	return nil
}
