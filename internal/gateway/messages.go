package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
)

// CommandMessage is a write arriving on a set topic.
type CommandMessage struct {
	// ID correlates the command with its ack. Generated when absent.
	ID        string    `json:"id,omitempty"`
	Value     any       `json:"value"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

// Ack statuses.
const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// ErrorBody describes a failed command or request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckMessage acknowledges one command.
type AckMessage struct {
	CommandID  string     `json:"command_id"`
	Timestamp  time.Time  `json:"timestamp"`
	AccessorID string     `json:"accessor_id"`
	Port       string     `json:"port"`
	Status     AckStatus  `json:"status"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// RequestMessage is a read arriving on a get topic.
type RequestMessage struct {
	RequestID string `json:"request_id"`
}

// ResponseMessage answers one read request.
type ResponseMessage struct {
	RequestID  string     `json:"request_id"`
	Timestamp  time.Time  `json:"timestamp"`
	AccessorID string     `json:"accessor_id"`
	Port       string     `json:"port"`
	Success    bool       `json:"success"`
	Value      any        `json:"value,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// StateMessage carries one output port value.
type StateMessage struct {
	AccessorID string    `json:"accessor_id"`
	Port       string    `json:"port"`
	Value      any       `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Error codes beyond the fault kinds.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidValue   = "INVALID_VALUE"
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeTimeout        = "TIMEOUT"
)

func newAck(cmd CommandMessage, id, portName string, err error) AckMessage {
	ack := AckMessage{
		CommandID:  cmd.ID,
		Timestamp:  time.Now().UTC(),
		AccessorID: id,
		Port:       portName,
		Status:     AckAccepted,
	}
	if err != nil {
		ack.Status = AckFailed
		ack.Error = errorBody(err)
	}
	return ack
}

func errorBody(err error) *ErrorBody {
	return &ErrorBody{Code: errorCode(err), Message: err.Error()}
}

// errorCode maps err to the code carried in acks and responses.
func errorCode(err error) string {
	switch {
	case errors.Is(err, host.ErrInstanceNotFound):
		return CodeNotFound
	case errors.Is(err, port.ErrInvalidValue):
		return CodeInvalidValue
	case fault.HasKind(err):
		return fault.Code(err)
	case errors.Is(err, errInvalidMessage):
		return CodeInvalidMessage
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return fault.CodeInternal
}
