package network

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/routing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// QueryID correlates a DHT query with its QueryProgressed event. IDs are
// never reused within a process.
type QueryID uint64

// QueryOp is the kind of DHT query.
type QueryOp int

const (
	OpGet QueryOp = iota
	OpPut
)

func (o QueryOp) String() string {
	if o == OpPut {
		return "put"
	}
	return "get"
}

// Kademlia issues record queries against a value store. Each query runs in
// its own goroutine and reports back through the event channel.
type Kademlia struct {
	store   routing.ValueStore
	emit    emitter
	timeout time.Duration
	tracer  trace.Tracer
	nextID  atomic.Uint64
}

func newKademlia(store routing.ValueStore, em emitter, timeout time.Duration, tracer trace.Tracer) *Kademlia {
	return &Kademlia{
		store:   store,
		emit:    em,
		timeout: timeout,
		tracer:  tracer,
	}
}

// GetRecord looks up a logical key.
func (k *Kademlia) GetRecord(key string) QueryID {
	return k.start(OpGet, key, nil)
}

// PutRecord stores value under a logical key.
func (k *Kademlia) PutRecord(key string, value []byte) QueryID {
	return k.start(OpPut, key, value)
}

func (k *Kademlia) start(op QueryOp, key string, value []byte) QueryID {
	id := QueryID(k.nextID.Add(1))
	go k.run(id, op, key, value)
	return id
}

func (k *Kademlia) run(id QueryID, op QueryOp, key string, value []byte) {
	ctx, cancel := context.WithTimeout(k.emit.ctx, k.timeout)
	defer cancel()

	ctx, span := k.tracer.Start(ctx, "dht."+op.String(), trace.WithAttributes(
		attribute.String("dht.key", key),
		attribute.Int64("dht.query_id", int64(id)),
	))

	ev := QueryProgressed{ID: id, Op: op, Key: key}
	switch op {
	case OpGet:
		ev.Value, ev.Err = k.store.GetValue(ctx, recordKey(key))
	case OpPut:
		ev.Err = k.store.PutValue(ctx, recordKey(key), value)
	}

	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.End()

	k.emit.emit(ev)
}
