package server

import (
	"sync"

	"konnect/internal/domain"
)

// queued is one routed envelope with its routing metadata in clear.
type queued struct {
	ID        string
	Message   string
	Key       string
	From      domain.Identity
	To        domain.Identity
	Group     domain.GroupID
	Timestamp int64
}

// state is the server's in-memory directory, group table and queues.
type state struct {
	mu        sync.RWMutex
	directory map[domain.Identity]string
	groups    map[domain.GroupID][]domain.Identity
	queues    map[domain.Identity][]queued
	backups   map[domain.Identity]domain.KeyBackup
}

func newState(groups map[domain.GroupID][]domain.Identity) *state {
	s := &state{
		directory: make(map[domain.Identity]string),
		groups:    make(map[domain.GroupID][]domain.Identity),
		queues:    make(map[domain.Identity][]queued),
		backups:   make(map[domain.Identity]domain.KeyBackup),
	}
	for g, members := range groups {
		s.groups[g] = append([]domain.Identity(nil), members...)
	}
	return s
}

func (s *state) register(who domain.Identity, pub string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory[who] = pub
}

func (s *state) publicKey(who domain.Identity) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pub, ok := s.directory[who]
	return pub, ok
}

func (s *state) setGroup(g domain.GroupID, members []domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g] = append([]domain.Identity(nil), members...)
}

// groupKeys lists the members of g with their keys; unregistered members
// have an empty key.
func (s *state) groupKeys(g domain.GroupID) ([]domain.GroupMemberKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.groups[g]
	if !ok {
		return nil, false
	}
	out := make([]domain.GroupMemberKey, 0, len(members))
	for _, m := range members {
		out = append(out, domain.GroupMemberKey{Identity: m.String(), PublicKey: s.directory[m]})
	}
	return out, true
}

func (s *state) isMember(g domain.GroupID, who domain.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.groups[g] {
		if m == who {
			return true
		}
	}
	return false
}

// enqueue appends every entry under one lock.
func (s *state) enqueue(entries []queued) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.queues[e.To] = append(s.queues[e.To], e)
	}
}

func (s *state) peek(who domain.Identity, limit int) []queued {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.queues[who]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	return append([]queued(nil), q...)
}

// ack drops the first count entries of who's queue and returns how many
// were dropped.
func (s *state) ack(who domain.Identity, count int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[who]
	if count > len(q) {
		count = len(q)
	}
	rest := q[count:]
	if len(rest) == 0 {
		delete(s.queues, who)
	} else {
		s.queues[who] = append([]queued(nil), rest...)
	}
	return count
}

func (s *state) putBackup(who domain.Identity, b domain.KeyBackup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backups[who] = b
}

func (s *state) backup(who domain.Identity) (domain.KeyBackup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backups[who]
	return b, ok
}
