// Package identity implements the IdentityMap described in SPEC_FULL.md §3
// and the IdentityService operations in §4.5: a process-wide, language-
// partitioned map from user-id to username, rev-id to packed IP, and rev-id
// to the username of a MissingId contributor, backed by an optional Redis
// cache and finalized into the relational store once per language run.
package identity

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"wikidat.dev/wikierr"
	"wikidat.dev/wikilog"
)

// partition holds one language's three namespaces behind a single mutex.
// Write rates are modest relative to parse throughput (§5), so one mutex per
// partition is sufficient; there is no need for finer-grained locking.
type partition struct {
	mu        sync.Mutex
	users     map[int64]string // user-id -> username
	anonRevs  map[int64]string // rev-id -> packed IP (decimal string)
	usersZero map[int64]string // rev-id -> username (MissingId contributors)
}

func newPartition() *partition {
	return &partition{
		users:     make(map[int64]string),
		anonRevs:  make(map[int64]string),
		usersZero: make(map[int64]string),
	}
}

// Service is the shared IdentityMap plus its optional Redis-backed durable
// scratch space. A nil redis client is a valid, fully-functional
// configuration: per §9 "the external cache is optional; an in-memory
// fallback is acceptable for single-language runs."
type Service struct {
	redis *redis.Client

	mu         sync.Mutex // guards creation of per-language partitions
	partitions map[string]*partition

	log *wikilog.ContextLogger

	degradedMu sync.Mutex
	degraded   bool // set once a CacheError is observed; surfaced at Finalize time
}

// NewService constructs a Service. client may be nil to run cache-less.
func NewService(client *redis.Client, log *wikilog.ContextLogger) *Service {
	if log == nil {
		log = wikilog.NewContextLogger(nil, map[string]interface{}{"component": "identity"})
	}
	return &Service{
		redis:      client,
		partitions: make(map[string]*partition),
		log:        log,
	}
}

func (s *Service) partitionFor(lang string) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[lang]
	if !ok {
		p = newPartition()
		s.partitions[lang] = p
	}
	return p
}

func (s *Service) markDegraded(op string, err error) {
	s.degradedMu.Lock()
	s.degraded = true
	s.degradedMu.Unlock()
	s.log.WithError(err).Warn((&wikierr.CacheError{Op: op, Err: err}).Error())
}

// Degraded reports whether any cache write fell back to best-effort during
// this run, per §7 CacheError: "a post-run warning is emitted; no rows are
// dropped."
func (s *Service) Degraded() bool {
	s.degradedMu.Lock()
	defer s.degradedMu.Unlock()
	return s.degraded
}

// RecordAnon stores ip, packed as a numeric address, keyed by revID under
// the anon-revs partition for lang.
func (s *Service) RecordAnon(ctx context.Context, lang string, revID int64, ip string) error {
	packed, err := PackIP(ip)
	if err != nil {
		return &wikierr.RecordError{Stage: "identity.RecordAnon", Detail: ip, Err: err}
	}

	p := s.partitionFor(lang)
	p.mu.Lock()
	p.anonRevs[revID] = packed
	p.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.HSet(ctx, anonRevsKey(lang), revID, packed).Err(); err != nil {
			s.markDegraded("RecordAnon", err)
		}
	}
	return nil
}

// RecordMissing stores username under users-zero, keyed by revID.
func (s *Service) RecordMissing(ctx context.Context, lang string, revID int64, username string) error {
	p := s.partitionFor(lang)
	p.mu.Lock()
	p.usersZero[revID] = username
	p.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.HSet(ctx, usersZeroKey(lang), revID, username).Err(); err != nil {
			s.markDegraded("RecordMissing", err)
		}
	}
	return nil
}

// RecordUser writes users[userID] = username if username is non-nil. If
// username is nil, it writes the empty string only when no prior entry
// exists for userID, preserving first-writer-wins for empty usernames and
// last-writer-wins for non-empty ones (§4.5, §8).
func (s *Service) RecordUser(ctx context.Context, lang string, userID int64, username *string) error {
	p := s.partitionFor(lang)

	p.mu.Lock()
	if username != nil {
		p.users[userID] = *username
	} else if _, exists := p.users[userID]; !exists {
		p.users[userID] = ""
	}
	resolved := p.users[userID]
	p.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.HSet(ctx, usersKey(lang), userID, resolved).Err(); err != nil {
			s.markDegraded("RecordUser", err)
		}
	}
	return nil
}

func usersKey(lang string) string     { return lang + ":users" }
func anonRevsKey(lang string) string  { return lang + ":anon-revs" }
func usersZeroKey(lang string) string { return lang + ":users-zero" }

// Snapshot returns a point-in-time copy of lang's three partitions, used by
// Finalize to bulk-load without holding the partition lock for the whole
// duration of the database round trip.
type Snapshot struct {
	Users     map[int64]string
	AnonRevs  map[int64]string
	UsersZero map[int64]string
}

func (s *Service) Snapshot(lang string) Snapshot {
	p := s.partitionFor(lang)
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Users:     make(map[int64]string, len(p.users)),
		AnonRevs:  make(map[int64]string, len(p.anonRevs)),
		UsersZero: make(map[int64]string, len(p.usersZero)),
	}
	for k, v := range p.users {
		snap.Users[k] = v
	}
	for k, v := range p.anonRevs {
		snap.AnonRevs[k] = v
	}
	for k, v := range p.usersZero {
		snap.UsersZero[k] = v
	}
	return snap
}
