package health

import (
	"context"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

// Pinger is implemented by stores that can test their connection directly
type Pinger interface {
	Ping(ctx context.Context) error
}

// Alive always reports healthy
func Alive(name string) CheckFunc {
	return func(context.Context) Check {
		return Check{Name: name, Status: StatusHealthy}
	}
}

// StoreCheck probes the document store. Stores with a Ping method are pinged;
// any other store is probed by opening and rolling back a transaction.
func StoreCheck(store docstore.Store) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{Name: "store", Status: StatusHealthy, Message: "Connected"}

		var err error
		if p, ok := store.(Pinger); ok {
			err = p.Ping(ctx)
		} else {
			var tx docstore.Tx
			if tx, err = store.Begin(ctx); err == nil {
				err = tx.Rollback(ctx)
			}
		}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		}
		return check
	}
}

// ListenerCheck reports whether the transport is accepting requests
func ListenerCheck(addr string, listening func() bool) CheckFunc {
	return func(context.Context) Check {
		check := Check{
			Name:    "transport",
			Status:  StatusHealthy,
			Details: map[string]any{"addr": addr},
		}
		if !listening() {
			check.Status = StatusUnhealthy
			check.Message = "not listening"
		}
		return check
	}
}
