// Package services implements the session, task, and MCTS orchestration
// layer on top of pkg/tree and pkg/mcts.
package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prismbench/search/pkg/apperrors"
	"github.com/prismbench/search/pkg/config"
	"github.com/prismbench/search/pkg/models"
	"github.com/prismbench/search/pkg/tree"
)

// SessionService owns the in-memory session registry and the one tree each
// session carries: a map[string]*T guarded by a single RWMutex, no
// persistence.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	trees    map[string]*tree.Tree
}

// NewSessionService builds an empty, ready-to-use SessionService.
func NewSessionService() *SessionService {
	return &SessionService{
		sessions: make(map[string]*models.Session),
		trees:    make(map[string]*tree.Tree),
	}
}

// CreateSession initializes a new tree from treeCfg and registers a session
// that owns it.
func (s *SessionService) CreateSession(treeName string, treeCfg config.TreeConfig) (*models.Session, error) {
	concepts := make([]models.Concept, len(treeCfg.Concepts))
	for i, c := range treeCfg.Concepts {
		concepts[i] = models.Concept(c)
	}
	difficulties := make([]models.Difficulty, len(treeCfg.Difficulties))
	for i, d := range treeCfg.Difficulties {
		difficulties[i] = models.Difficulty(d)
	}

	t := tree.Initialize(concepts, difficulties)

	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		TreeName:  treeName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	s.trees[session.ID] = t
	return session, nil
}

// GetSession returns a session by ID.
func (s *SessionService) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return session, nil
}

// GetTree returns the tree owned by a session.
func (s *SessionService) GetTree(sessionID string) (*tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return t, nil
}

// ReplaceTree swaps a session's tree, used when a task resumes from a
// checkpoint loaded by the caller.
func (s *SessionService) ReplaceTree(sessionID string, t *tree.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	s.trees[sessionID] = t
	session.UpdatedAt = time.Now()
	return nil
}

// ListSessions returns every known session.
func (s *SessionService) ListSessions() []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
