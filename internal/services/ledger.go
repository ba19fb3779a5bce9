package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"treecert/internal/errors"
	"treecert/internal/models"
)

// maxListLimit caps page sizes to prevent excessive memory usage.
const maxListLimit = 1000

// LedgerService records issued certificates in a Firestore collection.
type LedgerService struct {
	client     *firestore.Client
	collection string
}

func NewLedgerService(client *firestore.Client, collection string) *LedgerService {
	return &LedgerService{
		client:     client,
		collection: collection,
	}
}

// Record stores a new ledger entry and returns its document ID.
func (ls *LedgerService) Record(ctx context.Context, entry *models.IssuedCertificate) (string, error) {
	docRef, _, err := ls.client.Collection(ls.collection).Add(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("failed to record certificate: %w", err)
	}

	entry.Id = docRef.ID
	return docRef.ID, nil
}

// Retrieves a ledger entry by document ID.
func (ls *LedgerService) Get(ctx context.Context, id string) (*models.IssuedCertificate, error) {
	doc, err := ls.client.Collection(ls.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return decodeEntry(doc)
}

// FindByTreeID returns every certificate issued for a tree, newest first.
func (ls *LedgerService) FindByTreeID(ctx context.Context, treeID string) ([]*models.IssuedCertificate, error) {
	query := ls.client.Collection(ls.collection).
		Where("treeId", "==", treeID).
		OrderBy("issuedAt", firestore.Desc)

	results, err := ls.collect(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.ErrNotFound
	}
	return results, nil
}

// Retrieves ledger entries ordered by issue time with pagination.
func (ls *LedgerService) List(ctx context.Context, limit int, page int) ([]*models.IssuedCertificate, error) {
	limit, offset, err := pageWindow(limit, page)
	if err != nil {
		return nil, err
	}

	query := ls.client.Collection(ls.collection).OrderBy("issuedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
		if offset > 0 {
			query = query.Offset(offset)
		}
	}

	return ls.collect(ctx, query)
}

func (ls *LedgerService) collect(ctx context.Context, query firestore.Query) ([]*models.IssuedCertificate, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []*models.IssuedCertificate
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}

		entry, err := decodeEntry(doc)
		if err != nil {
			// Skip individual documents that do not parse
			continue
		}
		results = append(results, entry)
	}

	return results, nil
}

func decodeEntry(doc *firestore.DocumentSnapshot) (*models.IssuedCertificate, error) {
	var entry models.IssuedCertificate
	if err := doc.DataTo(&entry); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ledger entry %s: %v", errors.ErrInternal, doc.Ref.ID, err)
	}
	entry.Id = doc.Ref.ID
	return &entry, nil
}

// pageWindow validates pagination parameters and returns the capped limit and offset.
// A zero limit means no limit.
func pageWindow(limit, page int) (int, int, error) {
	if limit < 0 {
		return 0, 0, fmt.Errorf("%w: limit cannot be negative", errors.ErrInvalidInput)
	}
	if page < 0 {
		return 0, 0, fmt.Errorf("%w: page cannot be negative", errors.ErrInvalidInput)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, page * limit, nil
}
