package tcp

import (
	"wmshub/internal/warehouse"
)

func (d *Dispatcher) handlePackageReceived(sess Session, payload []byte) (reply, error) {
	f, err := parseFields(payload)
	if err != nil {
		return reply{}, err
	}
	packageID, err := f.optionalString("package_id")
	if err != nil {
		return reply{}, err
	}
	orderID, err := f.requiredString("order_id")
	if err != nil {
		return reply{}, err
	}
	clientID, err := f.requiredString("client_id")
	if err != nil {
		return reply{}, err
	}
	weight, err := f.requiredNumber("weight")
	if err != nil {
		return reply{}, err
	}
	if weight <= 0 {
		return reply{}, validationErrorf("Invalid field weight: must be positive")
	}
	dimensions, err := f.requiredString("dimensions")
	if err != nil {
		return reply{}, err
	}
	externalOrderID, err := f.optionalString("external_order_id")
	if err != nil {
		return reply{}, err
	}
	special, err := f.optionalBool("special_handling")
	if err != nil {
		return reply{}, err
	}
	if packageID == "" {
		packageID = d.newID()
	}

	ev, err := d.store.Receive(warehouse.NewPackage{
		PackageID:       packageID,
		OrderID:         orderID,
		ExternalOrderID: externalOrderID,
		ClientID:        clientID,
		Weight:          weight,
		Dimensions:      dimensions,
		SpecialHandling: special,
	})
	if err != nil {
		return reply{}, err
	}
	d.logger.Info("package_received",
		"client_id", sess.ID(),
		"package_id", ev.Package.PackageID,
		"zone", ev.Package.Zone,
	)
	return reply{
		msgType: MsgPackageReceived,
		body: PackageReceivedResponse{
			PackageID:    ev.Package.PackageID,
			Status:       ev.Package.Status,
			AssignedZone: ev.Package.Zone,
			Message:      "Package received and stored successfully",
		},
		event: &ev,
	}, nil
}

func (d *Dispatcher) handlePackageProcessed(sess Session, payload []byte) (reply, error) {
	f, err := parseFields(payload)
	if err != nil {
		return reply{}, err
	}
	packageID, err := f.requiredString("package_id")
	if err != nil {
		return reply{}, err
	}
	ev, err := d.store.MarkProcessed(packageID)
	if err != nil {
		return reply{}, err
	}
	d.logger.Info("package_processed",
		"client_id", sess.ID(),
		"package_id", packageID,
	)
	return reply{
		msgType: MsgPackageProcessed,
		body: PackageProcessedResponse{
			PackageID: packageID,
			Status:    ev.Package.Status,
			Message:   "Package processed and ready for loading",
		},
		event: &ev,
	}, nil
}

func (d *Dispatcher) handlePackageLoaded(sess Session, payload []byte) (reply, error) {
	f, err := parseFields(payload)
	if err != nil {
		return reply{}, err
	}
	packageID, err := f.requiredString("package_id")
	if err != nil {
		return reply{}, err
	}
	vehicleID, err := f.requiredString("vehicle_id")
	if err != nil {
		return reply{}, err
	}
	ev, err := d.store.MarkLoaded(packageID, vehicleID)
	if err != nil {
		return reply{}, err
	}
	d.logger.Info("package_loaded",
		"client_id", sess.ID(),
		"package_id", packageID,
		"vehicle_id", vehicleID,
	)
	return reply{
		msgType: MsgPackageLoaded,
		body: PackageLoadedResponse{
			PackageID: packageID,
			Status:    ev.Package.Status,
			VehicleID: vehicleID,
			Message:   "Package loaded onto vehicle successfully",
		},
		event: &ev,
	}, nil
}

func (d *Dispatcher) handlePackageStatus(_ Session, payload []byte) (reply, error) {
	f, err := parseFields(payload)
	if err != nil {
		return reply{}, err
	}
	packageID, err := f.requiredString("package_id")
	if err != nil {
		return reply{}, err
	}
	pkg, err := d.store.Status(packageID)
	if err != nil {
		return reply{}, err
	}
	return reply{msgType: MsgPackageStatusResp, body: pkg}, nil
}

// the request body is ignored; ESB clients send a request_id we have no use for
func (d *Dispatcher) handleWarehouseStatus(_ Session, _ []byte) (reply, error) {
	return reply{msgType: MsgWarehouseStatusResp, body: d.store.Snapshot()}, nil
}

func (d *Dispatcher) handleHeartbeat(sess Session, _ []byte) (reply, error) {
	now := d.now()
	sess.Heartbeat(now)
	return reply{
		msgType: MsgHeartbeat,
		body:    HeartbeatResponse{Status: "alive", Timestamp: now},
	}, nil
}

func (d *Dispatcher) handleCancelPackage(sess Session, payload []byte) (reply, error) {
	f, err := parseFields(payload)
	if err != nil {
		return reply{}, err
	}
	packageID, err := f.optionalString("package_id")
	if err != nil {
		return reply{}, err
	}
	orderID, err := f.optionalString("order_id")
	if err != nil {
		return reply{}, err
	}
	searchID := packageID
	if searchID == "" {
		searchID = orderID
	}
	if searchID == "" {
		return reply{}, validationErrorf("Missing package_id or order_id for cancel request")
	}

	ev, err := d.store.Cancel(searchID)
	if err != nil {
		return reply{}, err
	}
	correlation := ev.Package.ExternalOrderID
	if correlation == "" {
		correlation = ev.Package.OrderID
	}
	d.logger.Info("package_cancelled",
		"client_id", sess.ID(),
		"package_id", ev.Package.PackageID,
		"search_id", searchID,
		"previous_status", ev.PreviousStatus,
	)
	return reply{
		msgType: MsgCancelPackageResp,
		body: CancelPackageResponse{
			PackageID:      ev.Package.PackageID,
			OrderID:        correlation,
			Status:         ev.Package.Status,
			PreviousStatus: ev.PreviousStatus,
			Message:        "Package cancelled successfully",
		},
		event: &ev,
	}, nil
}

// handleCancelPackageResponse acknowledges a peer's cancel response. It is
// logged only; answering it would bounce responses back and forth.
func (d *Dispatcher) handleCancelPackageResponse(sess Session, payload []byte) (reply, error) {
	f, err := parseFields(payload)
	if err != nil {
		d.logger.Warn("cancel_response_unreadable",
			"client_id", sess.ID(),
			"error", err.Error(),
		)
		return reply{silent: true}, nil
	}
	packageID, _ := f.optionalString("package_id")
	d.logger.Info("cancel_response_received",
		"client_id", sess.ID(),
		"package_id", packageID,
	)
	return reply{silent: true}, nil
}
