package task

import (
	"context"
	"time"

	"github.com/opd-ai/devsync/wire"
)

// OutboundMessage is a fully encoded message addressed to a single
// remote identity, ready for transport encryption.
type OutboundMessage struct {
	Receiver  wire.Identity
	MessageID wire.MessageID
	CreatedAt time.Time
	Type      wire.MessageType
	Flags     wire.Flags
	Payload   []byte

	// Nickname is attached only when the sending task allows profile
	// distribution to the receiver.
	Nickname string
}

// ReflectedMessage mirrors an outgoing or incoming message to the
// user's other devices so every device converges on the same state.
type ReflectedMessage struct {
	Conversation wire.ConversationID
	MessageID    wire.MessageID
	CreatedAt    time.Time
	Type         wire.MessageType
	Payload      []byte
}

// CodecHandle is the connection-bound surface a task sends and reflects
// through. The runner hands a fresh handle to every run; handles must
// not be retained across runs.
//
// Reflect is only valid inside an active transaction when the task
// declares a non-empty transaction scope. In single-device mode
// MultiDevice reports false and tasks skip reflection entirely.
type CodecHandle interface {
	// MultiDevice reports whether other devices are linked.
	MultiDevice() bool

	// Send transmits a message to a single receiver.
	Send(ctx context.Context, msg *OutboundMessage) error

	// Reflect mirrors a message to the device group and waits for the
	// mediator acknowledgement.
	Reflect(ctx context.Context, msg *ReflectedMessage) error

	// BeginTransaction opens a device-group transaction of the given
	// scope, waiting until no other device holds one.
	BeginTransaction(ctx context.Context, scope Scope) error

	// CommitTransaction closes the current transaction.
	CommitTransaction(ctx context.Context) error

	// AbortTransaction discards the current transaction.
	AbortTransaction(ctx context.Context) error
}
