// Package publish is the core's one narrow seam onto the server: spec.md
// explicitly puts the upload wire protocol and HTTP client out of scope
// ("does not define the wire protocol of uploads... the HTTP client used
// to talk to the server" -- spec.md's Non-goals), so this package defines
// only the small Server contract the core needs (upload a finished
// CmdAction's CSV + blobs, fetch a blob by dcode) and a retry-wrapped
// caller around it, plus the concrete BlobFetcher pkg/shop consumes:
// check the local git store first, fall back to the server, and stash
// what the server returns for next time.
package publish

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/boyski/audited-objects/pkg/aolog"
	"github.com/boyski/audited-objects/pkg/cmdaction"
	"github.com/boyski/audited-objects/pkg/gitstore"
	"github.com/boyski/audited-objects/pkg/pathstate"
)

// Server is the contract this package needs from whatever actually talks
// to the build-avoidance server; spec.md leaves the wire protocol itself
// undefined, so real implementations (HTTP, local test doubles) live
// outside this package.
type Server interface {
	// Upload sends a completed CmdAction's CSV encoding and any new
	// target blobs it produced.
	Upload(ctx context.Context, ca *cmdaction.CmdAction, blobs map[string][]byte) error
	// Fetch retrieves one blob by its dcode (content hash).
	Fetch(ctx context.Context, dcode string) ([]byte, error)
}

// Uploader retries Server.Upload with exponential backoff, since an
// upload failure is transient far more often than it's fatal (spec.md
// §7 doesn't list upload failure as a Strict-governed kind at all --
// the audited build already completed; only the server record is at
// risk, so an eventual-retry policy is the correct shape).
type Uploader struct {
	srv     Server
	backoff func() backoff.BackOff
}

// NewUploader wraps srv with the default exponential backoff policy.
func NewUploader(srv Server) *Uploader {
	return &Uploader{srv: srv, backoff: backoff.NewExponentialBackOff}
}

// Upload retries srv.Upload until it succeeds, ctx is done, or the backoff
// policy stops retrying (the default exponential policy stops once 15
// minutes have elapsed).
func (u *Uploader) Upload(ctx context.Context, ca *cmdaction.CmdAction, blobs map[string][]byte) error {
	op := func() error { return u.srv.Upload(ctx, ca, blobs) }
	return backoff.Retry(op, backoff.WithContext(u.backoff(), ctx))
}

// Fetcher is the BlobFetcher pkg/shop's Engine is constructed with: it
// consults a local gitstore.Store before falling back to the server,
// and writes through whatever the server returns so a subsequent
// recycle of the same target is served locally.
type Fetcher struct {
	local *gitstore.Store
	srv   Server
}

// NewFetcher builds a Fetcher. local may be nil to disable the
// write-through cache entirely (every fetch goes to srv).
func NewFetcher(local *gitstore.Store, srv Server) *Fetcher {
	return &Fetcher{local: local, srv: srv}
}

// Fetch implements shop.BlobFetcher.
func (f *Fetcher) Fetch(ctx context.Context, ps *pathstate.State) ([]byte, error) {
	if ps.Dcode == "" {
		return nil, fmt.Errorf("publish: target %q has no dcode to fetch by", ps.PN.String())
	}
	if f.local != nil && f.local.Has(ps.Dcode) {
		aolog.Debugf(aolog.MAP, "fetch %s: local git store hit", ps.Dcode)
		return f.local.Get(ps.Dcode)
	}
	data, err := f.srv.Fetch(ctx, ps.Dcode)
	if err != nil {
		return nil, fmt.Errorf("publish: fetch %s from server: %w", ps.Dcode, err)
	}
	if f.local != nil {
		if _, err := f.local.Put(data); err != nil {
			aolog.Warnf("publish: caching fetched blob %s locally: %v", ps.Dcode, err)
		}
	}
	return data, nil
}
