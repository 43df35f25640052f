package migration

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Legacy collection names.
const (
	usersCollection    = "users"
	consentsCollection = "consents"
	walksCollection    = "walks"
)

// FirestoreSource reads the legacy collections straight from Firestore.
type FirestoreSource struct {
	client *firestore.Client
}

// NewFirestoreSource connects to the project. An empty credentialsFile falls back to
// application default credentials.
func NewFirestoreSource(ctx context.Context, projectID, credentialsFile string) (*FirestoreSource, error) {
	if projectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &FirestoreSource{client: client}, nil
}

// Users implements Source.
func (s *FirestoreSource) Users(ctx context.Context, fn func(LegacyUser, error) error) error {
	return iterate(ctx, s.client.Collection(usersCollection).Documents(ctx), func(doc *firestore.DocumentSnapshot) error {
		var u LegacyUser
		err := doc.DataTo(&u)
		u.ID = doc.Ref.ID
		return fn(u, err)
	})
}

// Consents implements Source. Consents live in a sub-collection under each user, so
// they are read with a collection group query.
func (s *FirestoreSource) Consents(ctx context.Context, fn func(LegacyConsent, error) error) error {
	return iterate(ctx, s.client.CollectionGroup(consentsCollection).Documents(ctx), func(doc *firestore.DocumentSnapshot) error {
		var c LegacyConsent
		err := doc.DataTo(&c)
		c.Type = doc.Ref.ID
		if parent := doc.Ref.Parent.Parent; parent != nil {
			c.UserID = parent.ID
		}
		return fn(c, err)
	})
}

// Walks implements Source.
func (s *FirestoreSource) Walks(ctx context.Context, fn func(LegacyWalk, error) error) error {
	return iterate(ctx, s.client.Collection(walksCollection).Documents(ctx), func(doc *firestore.DocumentSnapshot) error {
		var w LegacyWalk
		err := doc.DataTo(&w)
		w.ID = doc.Ref.ID
		return fn(w, err)
	})
}

// Close releases the Firestore client.
func (s *FirestoreSource) Close() error {
	return s.client.Close()
}

func iterate(ctx context.Context, it *firestore.DocumentIterator, fn func(*firestore.DocumentSnapshot) error) error {
	defer it.Stop()
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read documents: %w", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
