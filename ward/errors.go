// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ward

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by Run when the context is cancelled between merges.
var ErrAborted = errors.New("ward: clustering aborted")

// ErrorType classifies clustering errors.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidParameter a configuration value is out of range.
	ErrorTypeInvalidParameter
	// ErrorTypeInsufficientData too few points were supplied.
	ErrorTypeInsufficientData
	// ErrorTypeNumeric a feature or weight is NaN or infinite.
	ErrorTypeNumeric
	// ErrorTypeIncompletePartition the partition was requested before a terminal state.
	ErrorTypeIncompletePartition
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInvalidParameter:
		return "invalid parameter"
	case ErrorTypeInsufficientData:
		return "insufficient data"
	case ErrorTypeNumeric:
		return "numeric error"
	case ErrorTypeIncompletePartition:
		return "incomplete partition"
	default:
		return "unknown"
	}
}

// Error is returned for configuration, data and state errors.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ward: %s: %v", e.Message, e.Err)
	}

	return "ward: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// DisconnectedGraphError is returned when no legal merge remains before the
// requested number of clusters is reached. It carries the achieved partition
// so the caller can keep it, lower the request or densify the graph.
type DisconnectedGraphError struct {
	Requested int
	Achieved  int
	Partition *Partition
}

func (e *DisconnectedGraphError) Error() string {
	return fmt.Sprintf(
		"ward: adjacency graph is disconnected: requested %d clusters but no legal merge remains at %d",
		e.Requested, e.Achieved,
	)
}

func isType(err error, t ErrorType) bool {
	var wErr *Error
	if errors.As(err, &wErr) {
		return wErr.Type == t
	}

	return false
}

// IsInvalidParameter reports whether err is an invalid parameter error.
func IsInvalidParameter(err error) bool {
	return isType(err, ErrorTypeInvalidParameter)
}

// IsInsufficientData reports whether err is an insufficient data error.
func IsInsufficientData(err error) bool {
	return isType(err, ErrorTypeInsufficientData)
}

// IsNumeric reports whether err is caused by a non-finite input value.
func IsNumeric(err error) bool {
	return isType(err, ErrorTypeNumeric)
}

// IsIncompletePartition reports whether err was caused by reading a
// partition from an engine that has not finished.
func IsIncompletePartition(err error) bool {
	return isType(err, ErrorTypeIncompletePartition)
}

// IsDisconnectedGraph reports whether err is a *DisconnectedGraphError.
func IsDisconnectedGraph(err error) bool {
	var dErr *DisconnectedGraphError

	return errors.As(err, &dErr)
}
