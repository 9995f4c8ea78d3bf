package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Domain field helpers
func Component(name string) Field {
	return String("component", name)
}

func DocID(id string) Field {
	return String("doc_id", id)
}

func VertexID(id string) Field {
	return String("vertex_id", id)
}

func EdgeID(id string) Field {
	return String("edge_id", id)
}

// Op names the operation kind being applied
func Op(kind string) Field {
	return String("op", kind)
}

// Status carries a batch status name
func Status(s string) Field {
	return String("status", s)
}

func Direction(d string) Field {
	return String("direction", d)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Addr(a string) Field {
	return String("addr", a)
}
