// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package verification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/quixsi/showcase/internal/model"
)

// Issuer creates credential offers.
type Issuer interface {
	CreateCredential(ctx context.Context, schema string, attrs map[string]string) (*model.Offer, error)
}

// Issue asks issuer for a credential of schema holding attrs.
func Issue(ctx context.Context, issuer Issuer, schema string, attrs map[string]string) (*model.Offer, error) {
	ctx, span := tracer.Start(ctx, "Issue")
	defer span.End()
	span.SetAttributes(attribute.String("schema", schema))

	offer, err := issuer.CreateCredential(ctx, schema, attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to issue credential")
		return nil, fmt.Errorf("issue %s: %w", schema, err)
	}
	return offer, nil
}

const (
	DefaultOfferTTL   = 15 * time.Minute
	DefaultOfferLimit = 1024
)

// Offers remembers the offer issued to a visitor on a page so that reloading
// the QR block does not mint a second credential. Entries expire after a TTL
// and the oldest ones are evicted once the limit is reached.
type Offers struct {
	issuer Issuer
	ttl    time.Duration
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*offerEntry
}

type offerEntry struct {
	fingerprint string
	// ready is closed once offer or err is set.
	ready   chan struct{}
	offer   *model.Offer
	err     error
	created time.Time
}

func (e *offerEntry) done() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// NewOffers returns a cache in front of issuer. Non-positive ttl and limit
// select the defaults.
func NewOffers(issuer Issuer, ttl time.Duration, limit int) *Offers {
	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	if limit <= 0 {
		limit = DefaultOfferLimit
	}
	return &Offers{
		issuer:  issuer,
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
		entries: make(map[string]*offerEntry),
	}
}

// OfferKey identifies the offer of a visitor on a page.
func OfferKey(visitor uuid.UUID, page string) string {
	return visitor.String() + "|" + page
}

// Get returns the offer stored under key, issuing it first if needed. A key
// whose schema or attributes changed is issued again. Concurrent calls for
// the same key share one request and failed attempts are not remembered.
func (o *Offers) Get(ctx context.Context, key, schema string, attrs map[string]string) (*model.Offer, error) {
	fp := fingerprint(schema, attrs)

	o.mu.Lock()
	e, ok := o.entries[key]
	if ok && e.done() && (e.fingerprint != fp || o.expired(e)) {
		delete(o.entries, key)
		ok = false
	}
	if ok && e.fingerprint == fp {
		o.mu.Unlock()
		return e.wait(ctx)
	}
	e = &offerEntry{fingerprint: fp, ready: make(chan struct{}), created: o.now()}
	o.entries[key] = e
	o.evict()
	o.mu.Unlock()

	// the request outlives a caller that gives up, others may wait on it
	e.offer, e.err = Issue(context.WithoutCancel(ctx), o.issuer, schema, attrs)
	close(e.ready)
	if e.err != nil {
		o.mu.Lock()
		if o.entries[key] == e {
			delete(o.entries, key)
		}
		o.mu.Unlock()
	}
	return e.offer, e.err
}

func (e *offerEntry) wait(ctx context.Context) (*model.Offer, error) {
	select {
	case <-e.ready:
		return e.offer, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Offers) expired(e *offerEntry) bool {
	return o.now().Sub(e.created) >= o.ttl
}

// evict drops expired entries and then the oldest finished ones until the
// cache fits its limit. Callers hold mu.
func (o *Offers) evict() {
	if len(o.entries) <= o.limit {
		return
	}
	for k, e := range o.entries {
		if e.done() && o.expired(e) {
			delete(o.entries, k)
		}
	}
	for len(o.entries) > o.limit {
		oldest := ""
		var created time.Time
		for k, e := range o.entries {
			if !e.done() {
				continue
			}
			if oldest == "" || e.created.Before(created) {
				oldest, created = k, e.created
			}
		}
		if oldest == "" {
			return
		}
		delete(o.entries, oldest)
	}
}

// Forget drops the offer stored under key.
func (o *Offers) Forget(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, key)
}

func (o *Offers) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

func fingerprint(schema string, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(schema)
	for _, k := range keys {
		b.WriteString("\x00" + k + "=" + attrs[k])
	}
	return b.String()
}
