// Package firestore stores document results in a Firestore collection, one
// document per source path.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
	"github.com/kirillkom/pdf-digest/internal/infrastructure/resilience"
)

const DefaultCollection = "pdf_documents"

type ClientProvider interface {
	Acquire(ctx context.Context) (*firestore.Client, error)
}

// Connector creates the Firestore client on first use. A failed attempt is
// retried by the next Acquire.
type Connector struct {
	projectID string
	open      func(ctx context.Context, projectID string) (*firestore.Client, error)

	mu     sync.Mutex
	client *firestore.Client
}

func NewConnector(projectID string) *Connector {
	return &Connector{projectID: projectID, open: NewClient}
}

func (c *Connector) Acquire(ctx context.Context) (*firestore.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := c.open(ctx, c.projectID)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

type Store struct {
	provider   ClientProvider
	collection string
	executor   *resilience.Executor
	now        func() time.Time
}

func NewStore(provider ClientProvider, collection string, executor *resilience.Executor) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		provider:   provider,
		collection: collection,
		executor:   executor,
		now:        time.Now,
	}
}

type documentFields struct {
	Path        string     `firestore:"path"`
	Size        int64      `firestore:"size"`
	Summary     string     `firestore:"summary"`
	Keywords    []string   `firestore:"keywords"`
	Processed   bool       `firestore:"processed"`
	ProcessedAt *time.Time `firestore:"processedAt"`
	CreatedAt   time.Time  `firestore:"createdAt"`
}

func (s *Store) UpsertSummary(ctx context.Context, path, summary string, keywords []string) error {
	fields := summaryFields(path, summary, keywords, s.now().UTC())
	err := s.run(ctx, "firestore.upsert_summary", func(callCtx context.Context, ref *firestore.DocumentRef) error {
		_, err := ref.Set(callCtx, fields, firestore.MergeAll)
		return err
	}, path)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "upsert summary", err)
	}
	return nil
}

// StoreInitialMetadata creates the unprocessed record for path. When the
// record already exists only its size is refreshed.
func (s *Store) StoreInitialMetadata(ctx context.Context, path string, sizeBytes uint64) error {
	fields := initialFields(path, sizeBytes, s.now().UTC())
	err := s.run(ctx, "firestore.store_initial_metadata", func(callCtx context.Context, ref *firestore.DocumentRef) error {
		_, err := ref.Create(callCtx, fields)
		if status.Code(err) == codes.AlreadyExists {
			_, err = ref.Update(callCtx, []firestore.Update{{Path: "size", Value: int64(sizeBytes)}})
		}
		return err
	}, path)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "store initial metadata", err)
	}
	return nil
}

func (s *Store) GetByPath(ctx context.Context, path string) (*domain.DocumentRecord, error) {
	client, err := s.provider.Acquire(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "acquire firestore", err)
	}
	snap, err := client.Collection(s.collection).Doc(DocumentID(path)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("path %s", path))
		}
		return nil, domain.WrapError(domain.ErrPersistence, "get document", err)
	}

	var fields documentFields
	if err := snap.DataTo(&fields); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "decode document", err)
	}
	return toRecord(fields), nil
}

func (s *Store) run(
	ctx context.Context,
	operation string,
	fn func(context.Context, *firestore.DocumentRef) error,
	path string,
) error {
	call := func(callCtx context.Context) error {
		client, err := s.provider.Acquire(callCtx)
		if err != nil {
			return fmt.Errorf("acquire firestore: %w", err)
		}
		return fn(callCtx, client.Collection(s.collection).Doc(DocumentID(path)))
	}
	if s.executor == nil {
		return call(ctx)
	}
	return s.executor.Execute(ctx, operation, call, classifyFirestoreError)
}

// DocumentID derives a stable Firestore document ID from a path, which may
// contain characters Firestore rejects in IDs.
func DocumentID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

func summaryFields(path, summary string, keywords []string, now time.Time) map[string]any {
	if keywords == nil {
		keywords = []string{}
	}
	return map[string]any{
		"path":        path,
		"summary":     summary,
		"keywords":    keywords,
		"processed":   true,
		"processedAt": now,
	}
}

func initialFields(path string, sizeBytes uint64, now time.Time) documentFields {
	return documentFields{
		Path:      path,
		Size:      int64(sizeBytes),
		Keywords:  []string{},
		Processed: false,
		CreatedAt: now,
	}
}

func toRecord(fields documentFields) *domain.DocumentRecord {
	keywords := fields.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return &domain.DocumentRecord{
		Path:        fields.Path,
		SizeBytes:   uint64(fields.Size),
		Summary:     fields.Summary,
		Keywords:    keywords,
		Processed:   fields.Processed,
		ProcessedAt: fields.ProcessedAt,
		CreatedAt:   fields.CreatedAt,
	}
}

var classifyFirestoreError = resilience.TransientClassifier(func(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	}
	return false
})
