package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wmshub/internal/microservices/tcp"
)

var warehouseCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Show zone occupancy and package counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(cmd, tcp.MsgWarehouseStatusReq, nil)
	},
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Check the server is alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(cmd, tcp.MsgHeartbeat, nil)
	},
}

// watchCmd stays connected and prints every package update broadcast,
// sending a heartbeat every interval so the session stays fresh.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live package updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("heartbeat")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		go func() {
			<-ctx.Done()
			c.Close()
		}()
		if interval > 0 {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if err := c.Send(tcp.MsgHeartbeat, nil); err != nil {
							return
						}
					}
				}
			}()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Watching package updates on %s (Ctrl+C to stop)\n", serverAddr)
		for {
			f, err := c.Receive()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("connection lost: %w", err)
			}
			update, ok := tcp.DecodeUpdate(f)
			if !ok {
				// heartbeat acks
				continue
			}
			p := update.Package
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %-18s zone=%s order=%s\n",
				update.Timestamp.Format(time.RFC3339), p.PackageID, p.Status, p.Zone, p.OrderID)
		}
	},
}

// rawCmd sends an arbitrary message code, for protocol debugging
var rawCmd = &cobra.Command{
	Use:   "raw <type> [json]",
	Short: "Send a raw frame and print the response",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var code uint32
		if _, err := fmt.Sscan(args[0], &code); err != nil {
			return fmt.Errorf("invalid message type %q: %w", args[0], err)
		}
		var body any
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return errors.New("payload is not valid JSON")
			}
			body = json.RawMessage(args[1])
		}
		return roundTrip(cmd, tcp.MessageType(code), body)
	},
}

func init() {
	rootCmd.AddCommand(warehouseCmd, heartbeatCmd, watchCmd, rawCmd)
	watchCmd.Flags().Duration("heartbeat", 30*time.Second, "heartbeat interval, 0 disables")
}
