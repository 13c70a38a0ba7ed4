package registry

import (
	"errors"

	"github.com/jonwraymond/cosmosmcp/docstore"
)

// Sentinel errors for consistent error handling.
var (
	ErrNotStarted     = errors.New("registry not started")
	ErrAlreadyStarted = errors.New("registry already started")
	ErrToolNotFound   = errors.New("tool not found")
	ErrDuplicateTool  = errors.New("tool already registered")
	ErrInvalidTool    = errors.New("invalid tool")
	ErrInvalidRequest = errors.New("invalid request")
	ErrRemoteFailed   = errors.New("remote call failed")
)

// MCP JSON-RPC 2.0 error codes. Codes below -32000 are server-defined.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeToolNotFound   = -32001
	ErrCodeStore          = -32002
	ErrCodeAuthFailure    = -32003
	ErrCodeNotFound       = -32004
	ErrCodeAlreadyExists  = -32005
	ErrCodeCancelled      = -32006
)

// ErrorCode maps err to its JSON-RPC error code.
func ErrorCode(err error) int {
	if errors.Is(err, ErrToolNotFound) {
		return ErrCodeToolNotFound
	}
	switch docstore.KindOf(err) {
	case docstore.KindMissingParameter, docstore.KindInvalidParameter:
		return ErrCodeInvalidParams
	case docstore.KindAuthFailure:
		return ErrCodeAuthFailure
	case docstore.KindNotFound:
		return ErrCodeNotFound
	case docstore.KindAlreadyExists:
		return ErrCodeAlreadyExists
	case docstore.KindCancelled:
		return ErrCodeCancelled
	default:
		return ErrCodeStore
	}
}

// ErrorData is the structured data attached to tool call errors.
type ErrorData struct {
	Kind      docstore.Kind `json:"kind"`
	Tool      string        `json:"tool,omitempty"`
	Parameter string        `json:"parameter,omitempty"`
	Status    int           `json:"status,omitempty"`
}

func errorData(err error) *ErrorData {
	if errors.Is(err, ErrToolNotFound) {
		return nil
	}
	data := &ErrorData{Kind: docstore.KindOf(err)}
	var e *docstore.Error
	if errors.As(err, &e) {
		data.Tool = e.Tool
		data.Parameter = e.Param
		data.Status = e.Status
	}
	return data
}
