package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"wmshub/internal/microservices/tcp"
)

// receiveCmd registers a new package on the floor
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Register a received package",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := tcp.PackageReceivedRequest{}
		req.PackageID, _ = cmd.Flags().GetString("package-id")
		req.OrderID, _ = cmd.Flags().GetString("order-id")
		req.ExternalOrderID, _ = cmd.Flags().GetString("external-order-id")
		req.ClientID, _ = cmd.Flags().GetString("client-id")
		req.Weight, _ = cmd.Flags().GetFloat64("weight")
		req.Dimensions, _ = cmd.Flags().GetString("dimensions")
		req.SpecialHandling, _ = cmd.Flags().GetBool("special-handling")

		// Validate
		if req.Weight <= 0 {
			return fmt.Errorf("--weight must be a positive number")
		}
		return roundTrip(cmd, tcp.MsgPackageReceived, req)
	},
}

var processCmd = &cobra.Command{
	Use:   "process <package-id>",
	Short: "Mark a package processed and ready for loading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(cmd, tcp.MsgPackageProcessed, tcp.PackageRef{PackageID: args[0]})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <package-id>",
	Short: "Record a package as loaded onto a vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vehicle, _ := cmd.Flags().GetString("vehicle")
		return roundTrip(cmd, tcp.MsgPackageLoaded, tcp.PackageLoadedRequest{PackageID: args[0], VehicleID: vehicle})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <package-id>",
	Short: "Show the full record of one package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(cmd, tcp.MsgPackageStatusReq, tcp.PackageRef{PackageID: args[0]})
	},
}

// cancelCmd accepts a package id, an internal order id or an external order id
var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a package by package id or order id",
	RunE: func(cmd *cobra.Command, args []string) error {
		packageID, _ := cmd.Flags().GetString("package-id")
		orderID, _ := cmd.Flags().GetString("order-id")
		if packageID == "" && orderID == "" {
			return fmt.Errorf("one of --package-id or --order-id is required")
		}
		return roundTrip(cmd, tcp.MsgCancelPackageReq, tcp.CancelPackageRequest{PackageID: packageID, OrderID: orderID})
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd, processCmd, loadCmd, statusCmd, cancelCmd)

	receiveCmd.Flags().String("package-id", "", "package id (generated by the server when empty)")
	receiveCmd.Flags().String("order-id", "", "internal order id")
	receiveCmd.Flags().String("external-order-id", "", "upstream order alias")
	receiveCmd.Flags().String("client-id", "", "owning client")
	receiveCmd.Flags().Float64("weight", 0, "weight in kg")
	receiveCmd.Flags().String("dimensions", "", "dimensions, e.g. 30x20x10")
	receiveCmd.Flags().Bool("special-handling", false, "package needs special handling")
	receiveCmd.MarkFlagRequired("order-id")
	receiveCmd.MarkFlagRequired("client-id")
	receiveCmd.MarkFlagRequired("dimensions")

	loadCmd.Flags().String("vehicle", "", "vehicle id")
	loadCmd.MarkFlagRequired("vehicle")

	cancelCmd.Flags().String("package-id", "", "package id")
	cancelCmd.Flags().String("order-id", "", "order id or external order id")
}
