package firestorex

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewRealClient builds a Client backed by the Firestore instance attached to a Firebase
// app. credentialsPath may be empty to use application-default credentials (the
// in-cluster service account on Cloud Run).
func NewRealClient(ctx context.Context, projectID, credentialsPath string) (Client, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestorex: init firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestorex: init firestore client: %w", err)
	}
	return &realClient{fs: fs}, nil
}

type realClient struct {
	fs *firestore.Client
}

func (c *realClient) Collection(name string) CollectionRef {
	return realCollection{ref: c.fs.Collection(name)}
}

func (c *realClient) Close() error { return c.fs.Close() }

func (c *realClient) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	return c.fs.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, Transaction{tx: &realTx{t: t}})
	})
}

type realCollection struct {
	ref *firestore.CollectionRef
}

func (c realCollection) Doc(id string) DocRef {
	return realDoc{ref: c.ref.Doc(id)}
}

type realDoc struct {
	ref *firestore.DocumentRef
}

func (d realDoc) ID() string   { return d.ref.ID }
func (d realDoc) Path() string { return d.ref.Path }

func (d realDoc) Get(ctx context.Context) (Snapshot, error) {
	snap, err := d.ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return realSnapshot{snap: snap}, nil
		}
		return nil, err
	}
	return realSnapshot{snap: snap}, nil
}

func (d realDoc) Create(ctx context.Context, data map[string]any) error {
	_, err := d.ref.Create(ctx, data)
	if status.Code(err) == codes.AlreadyExists {
		return ErrAlreadyExists
	}
	return err
}

func (d realDoc) Set(ctx context.Context, data map[string]any, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	_, err := d.ref.Set(ctx, data, opts...)
	return err
}

type realSnapshot struct {
	snap *firestore.DocumentSnapshot
}

func (s realSnapshot) Exists() bool {
	return s.snap != nil && s.snap.Exists()
}

func (s realSnapshot) Data() map[string]any {
	if !s.Exists() {
		return nil
	}
	return s.snap.Data()
}

func (s realSnapshot) DataTo(v any) error {
	if !s.Exists() {
		return ErrNotFound
	}
	return s.snap.DataTo(v)
}

type realTx struct {
	t *firestore.Transaction
}

func (t *realTx) get(ref DocRef) (Snapshot, error) {
	rd, ok := ref.(realDoc)
	if !ok {
		return nil, fmt.Errorf("firestorex: transaction get requires a real document ref")
	}
	snap, err := t.t.Get(rd.ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return realSnapshot{snap: snap}, nil
		}
		return nil, err
	}
	return realSnapshot{snap: snap}, nil
}

func (t *realTx) create(ref DocRef, data map[string]any) error {
	rd, ok := ref.(realDoc)
	if !ok {
		return fmt.Errorf("firestorex: transaction create requires a real document ref")
	}
	err := t.t.Create(rd.ref, data)
	if status.Code(err) == codes.AlreadyExists {
		return ErrAlreadyExists
	}
	return err
}

func (t *realTx) set(ref DocRef, data map[string]any, merge bool) {
	rd, ok := ref.(realDoc)
	if !ok {
		return
	}
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	_ = t.t.Set(rd.ref, data, opts...)
}
