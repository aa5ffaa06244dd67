package resilience

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// Kind categorizes a failure for tracking and retry decisions.
type Kind string

const (
	KindDatabase      Kind = "database"
	KindNetwork       Kind = "network"
	KindFileSystem    Kind = "file_system"
	KindData          Kind = "data"
	KindConfiguration Kind = "configuration"
	KindUnknown       Kind = "unknown"
)

// ClassifiedError carries a failure kind alongside the underlying error.
type ClassifiedError struct {
	Kind Kind
	Err  error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewError wraps err with an explicit kind.
func NewError(kind Kind, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: err}
}

// Token tables for message-based classification. Network tokens win over
// database tokens when both match (a TLS failure reaching the DB host is a
// network problem, not a schema problem).
var (
	networkTokens = []string{
		"connection refused", "connection reset", "no such host",
		"network is unreachable", "ssl", "tls", "certificate", "http",
		"timeout", "timed out", "deadline exceeded", "soap", "dial tcp",
		"proxy", "dns",
	}
	databaseTokens = []string{
		"sql", "sqlite", "database", "constraint", "no rows", "pgx",
		"transaction", "deadlock", "login failed",
	}
	fileTokens = []string{
		"no such file", "permission denied", "file exists", "is a directory",
		"disk", "no space", "read-only file system",
	}
	dataTokens = []string{
		"xml", "parse", "unmarshal", "decode", "invalid syntax", "base64",
		"malformed", "unexpected eof",
	}
	configTokens = []string{
		"config", "missing required", "invalid value", "not configured",
	}
)

// Classify maps an error to a failure kind. A pre-classified error keeps its
// kind. Network classification takes priority over database classification.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return KindFileSystem
	}

	msg := strings.ToLower(err.Error())
	for _, tok := range networkTokens {
		if strings.Contains(msg, tok) {
			return KindNetwork
		}
	}
	for _, tok := range databaseTokens {
		if strings.Contains(msg, tok) {
			return KindDatabase
		}
	}
	for _, tok := range fileTokens {
		if strings.Contains(msg, tok) {
			return KindFileSystem
		}
	}
	for _, tok := range dataTokens {
		if strings.Contains(msg, tok) {
			return KindData
		}
	}
	for _, tok := range configTokens {
		if strings.Contains(msg, tok) {
			return KindConfiguration
		}
	}
	return KindUnknown
}
