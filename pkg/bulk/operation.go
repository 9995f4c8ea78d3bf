// Package bulk builds batches of graph mutations on the client, sends them to
// an executor and reconciles the reply with the caller's mirrors and
// VersionCache.
package bulk

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// Operation is one graph edit in a batch. The set of implementations is
// closed: use the New* constructors in this package.
type Operation interface {
	// Kind is the wire tag
	Kind() protocol.OpKind
	// Args is the wire payload
	Args() any
	// Preconditions maps each document the operation depends on to the
	// token observed when the operation was built; nil means never observed
	Preconditions() map[string]*string
	// Callback reconciles the caller's mirrors with the operation's result.
	// It runs after the batch commits, before the VersionCache is updated.
	Callback(result json.RawMessage, etags map[string]*string) error

	check() error
}

// expect captures the current token of every non-empty id
func expect(cache *VersionCache, ids ...string) map[string]*string {
	out := make(map[string]*string, len(ids))
	for _, id := range ids {
		if id != "" {
			out[id] = cache.expected(id)
		}
	}
	return out
}

func decodeResult(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return inconsistent("missing result")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistentResponse, err)
	}
	return nil
}

// requireToken checks that the response reports a live token for id
func requireToken(etags map[string]*string, id string) error {
	tok, ok := etags[id]
	if !ok {
		return inconsistent("document %s is not in the token map", id)
	}
	if tok == nil {
		return inconsistent("document %s is reported deleted", id)
	}
	return nil
}

// requireReported checks that the response mentions id. A nil token means a
// later operation in the same batch deleted the document.
func requireReported(etags map[string]*string, id string) error {
	if _, ok := etags[id]; !ok {
		return inconsistent("document %s is not in the token map", id)
	}
	return nil
}

// deleted reports whether the response says id was deleted
func deleted(etags map[string]*string, id string) bool {
	tok, ok := etags[id]
	return ok && tok == nil
}
