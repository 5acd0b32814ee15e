package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// ErrDuplicateTeam is returned when a team already has an active session.
var ErrDuplicateTeam = errors.New("duplicate team")

// Registry maps team names to their active session. It is shared by every
// relay connection.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Contains reports whether team has an active session.
func (r *Registry) Contains(team string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[team]
	return ok
}

// Register adds s under its team name.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	team := s.Team()
	if _, ok := r.sessions[team]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTeam, team)
	}
	r.sessions[team] = s
	return nil
}

// Remove drops team if it is still held by s and reports whether it did.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[s.Team()]
	if !ok || current != s {
		return false
	}
	delete(r.sessions, s.Team())
	return true
}

// Teams lists the registered team names in sorted order.
func (r *Registry) Teams() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	teams := make([]string, 0, len(r.sessions))
	for team := range r.sessions {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StopAll stops and removes every registered session.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for team, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, team)
	}
	r.mu.Unlock()

	var err error
	for _, s := range sessions {
		err = multierr.Append(err, s.Stop())
	}
	return err
}
