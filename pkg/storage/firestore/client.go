package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/stridelog/server/pkg"
	"github.com/stridelog/server/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Raw exposes the underlying client for batched writes and queries.
func (c *Client) Raw() *firestore.Client {
	return c.fs
}

func (c *Client) Activities() *Collection[types.Activity] {
	return &Collection[types.Activity]{
		Ref:           c.fs.Collection(shared.CollectionActivities),
		ToFirestore:   ActivityToFirestore,
		FromFirestore: FirestoreToActivity,
	}
}

func (c *Client) Laps() *Collection[types.Lap] {
	return &Collection[types.Lap]{
		Ref:           c.fs.Collection(shared.CollectionLaps),
		ToFirestore:   LapToFirestore,
		FromFirestore: FirestoreToLap,
	}
}

func (c *Client) ActivityRecords() *Collection[types.Record] {
	return &Collection[types.Record]{
		Ref:           c.fs.Collection(shared.CollectionActivityRecords),
		ToFirestore:   RecordToFirestore,
		FromFirestore: FirestoreToRecord,
	}
}
