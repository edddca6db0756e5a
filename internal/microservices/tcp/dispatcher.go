package tcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wmshub/internal/microservices/tcp/frame"
	"wmshub/internal/warehouse"
)

// Session is the slice of a connection the dispatcher is allowed to see.
type Session interface {
	ID() string
	Heartbeat(at time.Time)
}

// EventRecorder receives every successful lifecycle mutation. It is
// installed as the store's observer, so events arrive in store order.
type EventRecorder = warehouse.Observer

// reply is what a handler hands back: the response code and body, plus the
// mutation it caused, if any.
type reply struct {
	msgType MessageType
	body    any
	event   *warehouse.Event
	silent  bool // no response frame for this request
}

type handlerFunc func(d *Dispatcher, sess Session, payload []byte) (reply, error)

var handlers = map[MessageType]handlerFunc{
	MsgPackageReceived:    (*Dispatcher).handlePackageReceived,
	MsgPackageProcessed:   (*Dispatcher).handlePackageProcessed,
	MsgPackageLoaded:      (*Dispatcher).handlePackageLoaded,
	MsgPackageStatusReq:   (*Dispatcher).handlePackageStatus,
	MsgWarehouseStatusReq: (*Dispatcher).handleWarehouseStatus,
	MsgHeartbeat:          (*Dispatcher).handleHeartbeat,
	MsgCancelPackageReq:   (*Dispatcher).handleCancelPackage,
	MsgCancelPackageResp:  (*Dispatcher).handleCancelPackageResponse,
}

// Result is the outcome of one dispatched frame. Response is nil when the
// request expects no answer; Event is set when the store changed.
type Result struct {
	Response *frame.Frame
	Event    *warehouse.Event
}

// Dispatcher routes decoded frames to handlers. It never touches the
// transport and never returns an error: every failure becomes an ERROR
// frame here and nowhere else.
type Dispatcher struct {
	store  *warehouse.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewDispatcher wires journal, when non-nil, into store as its observer.
func NewDispatcher(store *warehouse.Store, journal EventRecorder, logger *slog.Logger) *Dispatcher {
	if journal != nil {
		store.SetObserver(journal)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return "PKG-" + uuid.NewString() },
	}
}

func (d *Dispatcher) Dispatch(sess Session, msgType uint32, payload []byte) Result {
	mt := MessageType(msgType)
	h, ok := handlers[mt]
	if !ok {
		err := unknownMessageError(msgType)
		d.logger.Warn("unknown_message_type",
			"client_id", sess.ID(),
			"message_type", msgType,
		)
		return Result{Response: d.ErrorFrame(err)}
	}

	r, err := h(d, sess, payload)
	if err != nil {
		d.logRejected(sess, mt, err)
		return Result{Response: d.ErrorFrame(err)}
	}

	if r.silent {
		return Result{Event: r.event}
	}

	body, err := json.Marshal(r.body)
	if err != nil {
		d.logger.Error("response_marshal_failed",
			"client_id", sess.ID(),
			"message_type", mt.String(),
			"error", err.Error(),
		)
		return Result{Response: d.ErrorFrame(err), Event: r.event}
	}
	return Result{Response: &frame.Frame{Type: uint32(r.msgType), Payload: body}, Event: r.event}
}

func (d *Dispatcher) logRejected(sess Session, mt MessageType, err error) {
	level := slog.LevelWarn
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, warehouse.ErrNotFound),
		errors.Is(err, warehouse.ErrDuplicate),
		errors.Is(err, warehouse.ErrInvalidTransition):
		level = slog.LevelInfo
	}
	d.logger.Log(context.Background(), level, "request_rejected",
		"client_id", sess.ID(),
		"message_type", mt.String(),
		"error", err.Error(),
	)
}

// ErrorFrame builds the ERROR frame for err.
func (d *Dispatcher) ErrorFrame(err error) *frame.Frame {
	body, _ := json.Marshal(ErrorResponse{Error: err.Error(), Timestamp: d.now()})
	return &frame.Frame{Type: uint32(MsgError), Payload: body}
}

// UpdateFrame builds the broadcast frame for a changed package.
func (d *Dispatcher) UpdateFrame(pkg warehouse.Package) (frame.Frame, error) {
	body, err := json.Marshal(PackageUpdate{Type: PackageUpdateType, Package: pkg, Timestamp: d.now()})
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.Frame{Type: uint32(MsgPackageUpdate), Payload: body}, nil
}
