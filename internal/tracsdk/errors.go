package tracsdk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPageNotFound     = errors.New("tracsdk: page not found")
	ErrPermissionDenied = errors.New("tracsdk: permission denied")
	ErrVersionConflict  = errors.New("tracsdk: page version conflict")
)

// FaultError is a Trac XML-RPC fault that matched no sentinel.
type FaultError struct {
	Code    int
	Message string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("tracsdk: fault %d: %s", e.Code, e.Message)
}

// classifyFault maps Trac fault codes and strings onto sentinel errors.
// The XmlRpcPlugin reports ResourceNotFound as 404 and PermissionError as
// 403; concurrent edits surface only through the fault string.
func classifyFault(code int, message string) error {
	switch code {
	case 404:
		return fmt.Errorf("%w: %s", ErrPageNotFound, message)
	case 403:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, message)
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "does not exist"), strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", ErrPageNotFound, message)
	case strings.Contains(lower, "permission"), strings.Contains(lower, "privilege"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, message)
	case strings.Contains(lower, "version") && strings.Contains(lower, "conflict"),
		strings.Contains(lower, "has been modified"):
		return fmt.Errorf("%w: %s", ErrVersionConflict, message)
	}
	return &FaultError{Code: code, Message: message}
}
