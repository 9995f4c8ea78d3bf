// Package protocol defines the request and response exchanged between a bulk
// batch and the executor that applies it.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Status is the overall outcome of a batch
type Status int

const (
	StatusSuccess         Status = 0
	StatusDBError         Status = -1
	StatusNotAccepted     Status = -2
	StatusAssertionFailed Status = -3
	StatusInternalError   Status = -4
)

// String returns the name of a status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusDBError:
		return "dberror"
	case StatusNotAccepted:
		return "not_accepted"
	case StatusAssertionFailed:
		return "assertion_failed"
	case StatusInternalError:
		return "internal_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Operation is one tagged descriptor. Args is decoded by the executor into
// the struct matching Op.
type Operation struct {
	Op   OpKind          `json:"op"`
	Args json.RawMessage `json:"args"`
}

// NewOperation encodes args under kind
func NewOperation(kind OpKind, args any) (Operation, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return Operation{}, fmt.Errorf("failed to marshal %s args: %w", kind, err)
	}
	return Operation{Op: kind, Args: data}, nil
}

// Request is one batch. KnownETags maps document id to the token the client
// last observed; a nil token means the client has never observed it.
type Request struct {
	Operations []Operation        `json:"ops"`
	KnownETags map[string]*string `json:"knownEtags"`
}

// HostError carries the host's own failure detail
type HostError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the executor's answer. Results is aligned with the request's
// operations; ETags holds the new token, or null for deleted/unknown, of
// every document the batch touched.
type Response struct {
	Status     Status             `json:"status"`
	Message    string             `json:"message"`
	Diagnostic string             `json:"content,omitempty"`
	HostError  *HostError         `json:"hostError,omitempty"`
	Results    []json.RawMessage  `json:"result"`
	ETags      map[string]*string `json:"etags"`
}

// DecodeResult decodes the result at position i into out. A null or missing
// result leaves out untouched and returns false.
func (r *Response) DecodeResult(i int, out any) (bool, error) {
	if i < 0 || i >= len(r.Results) {
		return false, nil
	}
	raw := r.Results[i]
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode result %d: %w", i, err)
	}
	return true, nil
}

// ETag returns the token reported for id. present is false when the response
// does not mention id; a present nil token means deleted or unknown.
func (r *Response) ETag(id string) (token *string, present bool) {
	token, present = r.ETags[id]
	return token, present
}
