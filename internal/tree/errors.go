package tree

import (
	"errors"
	"fmt"
)

// Kind classifies a tree operation failure so the transport layer can map
// it to a response without string matching.
type Kind int

const (
	// KindValidation covers bad input: empty names, a target that is not a
	// folder, a move into the node's own subtree.
	KindValidation Kind = iota + 1
	// KindNotFound means the referenced node does not exist for this owner.
	KindNotFound
	// KindRemote means a blob-storage call failed. Whether it aborted the
	// operation depends on the call site policy.
	KindRemote
	// KindPrecondition means a permanent delete was attempted on a file
	// that is not in the trash.
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindRemote:
		return "remote"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Error carries the failure kind plus enough context (node id, phase) for a
// caller to retry safely.
type Error struct {
	Kind   Kind
	NodeID string
	Phase  string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %s: %s", e.Kind, e.NodeID, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a tree error of the given kind.
func IsKind(err error, kind Kind) bool {
	var treeErr *Error
	return errors.As(err, &treeErr) && treeErr.Kind == kind
}

func validationErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func notFoundErr(nodeID string) *Error {
	return &Error{Kind: KindNotFound, NodeID: nodeID, Msg: "node does not exist"}
}

func remoteErr(nodeID, phase string, err error) *Error {
	return &Error{Kind: KindRemote, NodeID: nodeID, Phase: phase, Err: err}
}

func preconditionErr(nodeID, msg string) *Error {
	return &Error{Kind: KindPrecondition, NodeID: nodeID, Msg: msg}
}
