// Package relay connects the cache to the network sources of raw records.
package relay

import (
	"context"

	"github.com/okian/pacer/internal/domain/model"
)

// Client is the network collaborator. Implementations deliver records that
// were already signature-checked by the transport.
type Client interface {
	// FetchOnce returns the stored records matching filter. On failure the
	// records gathered so far are returned together with the error.
	FetchOnce(ctx context.Context, filter model.Filter) ([]model.RawRecord, error)

	// Subscribe streams stored and then live records matching filter until
	// ctx is done.
	Subscribe(ctx context.Context, filter model.Filter) (*Subscription, error)
}

// Subscription is an open record stream.
type Subscription struct {
	// Records is closed when the stream ends.
	Records <-chan model.RawRecord
	// EOSE is closed once every stored record has been delivered.
	EOSE <-chan struct{}
}

// NewSubscription returns a subscription together with its send side.
// Producers close records when done and eose after the stored batch.
func NewSubscription(buffer int) (*Subscription, chan<- model.RawRecord, chan<- struct{}) {
	records := make(chan model.RawRecord, buffer)
	eose := make(chan struct{})
	return &Subscription{Records: records, EOSE: eose}, records, eose
}
