package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrUnknownOp is returned for a tag this version does not understand
var ErrUnknownOp = fmt.Errorf("unknown operation")

// DecodeArgs decodes an operation's arguments into the struct for its tag.
// The returned value is always a pointer (e.g. *AddEdgeArgs).
func DecodeArgs(op Operation) (any, error) {
	var args any
	switch op.Op {
	case OpAddVertex:
		args = &AddVertexArgs{}
	case OpAddEdge:
		args = &AddEdgeArgs{}
	case OpDropVertexProperty:
		args = &DropVertexPropertyArgs{}
	case OpDropVertexSingleProperty:
		args = &DropVertexSinglePropertyArgs{}
	case OpDropVertexSinglePropertyMetaProperty:
		args = &DropVertexSinglePropertyMetaPropertyArgs{}
	case OpDropEdge:
		args = &DropEdgeArgs{}
	case OpDropEdgeProperty:
		args = &DropEdgePropertyArgs{}
	case OpUpdateVertexProperty:
		args = &UpdateVertexPropertyArgs{}
	case OpUpdateEdgeProperty:
		args = &UpdateEdgePropertyArgs{}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownOp, op.Op)
	}
	if err := json.Unmarshal(op.Args, args); err != nil {
		return nil, fmt.Errorf("failed to decode %s args: %w", op.Op, err)
	}
	return args, nil
}
