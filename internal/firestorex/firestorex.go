// Package firestorex abstracts the document-store operations C10 and C11 need
// (create-once idempotency, transactional read-modify-write, merge-set) behind a small
// interface so tests run against an in-memory fake while production wires the real
// Firestore client obtained from the Firebase app.
package firestorex

import (
	"context"
	"errors"
)

// ErrAlreadyExists mirrors google.golang.org/grpc/codes.AlreadyExists / the Firestore
// client's create() conflict, without depending on the gRPC status package directly.
var ErrAlreadyExists = errors.New("firestorex: document already exists")

// ErrNotFound is returned by the Firestore adapter's Snapshot.DataTo when the document
// does not exist. Transaction.Get and Doc.Get do not return it; they report a missing
// document through Snapshot.Exists.
var ErrNotFound = errors.New("firestorex: document not found")

// Snapshot is a point-in-time read of a document.
type Snapshot interface {
	Exists() bool
	// DataTo decodes the document fields into v, matching the real client's (*DocumentSnapshot).DataTo.
	DataTo(v any) error
	// Data returns the document fields as a map, for callers that don't have a typed shape.
	Data() map[string]any
}

// DocRef addresses a single document within a Collection.
type DocRef interface {
	ID() string
	Path() string
	Get(ctx context.Context) (Snapshot, error)
	// Create fails with ErrAlreadyExists if the document exists.
	Create(ctx context.Context, data map[string]any) error
	// Set writes data, merging with the existing document when merge is true.
	Set(ctx context.Context, data map[string]any, merge bool) error
}

// CollectionRef addresses a named collection.
type CollectionRef interface {
	Doc(id string) DocRef
}

// Transaction scopes reads and writes to one atomic round-trip. With the Firestore
// adapter, writes are only visible after the enclosing RunTransaction callback returns
// nil, matching Firestore's optimistic-transaction semantics. The in-memory client
// applies each write as it is made and does not undo it if the callback fails.
type Transaction struct {
	tx txBackend
}

func (t Transaction) Get(ref DocRef) (Snapshot, error)                    { return t.tx.get(ref) }
func (t Transaction) Create(ref DocRef, data map[string]any) error        { return t.tx.create(ref, data) }
func (t Transaction) Set(ref DocRef, data map[string]any, merge bool)     { t.tx.set(ref, data, merge) }

type txBackend interface {
	get(ref DocRef) (Snapshot, error)
	create(ref DocRef, data map[string]any) error
	set(ref DocRef, data map[string]any, merge bool)
}

// Client is the document-store handle C10/C11 depend on.
type Client interface {
	Collection(name string) CollectionRef
	// RunTransaction retries fn on contention, matching (*firestore.Client).RunTransaction.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
	Close() error
}
