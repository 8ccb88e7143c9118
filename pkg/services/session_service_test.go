package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prismbench/search/pkg/apperrors"
	"github.com/prismbench/search/pkg/config"
)

func testTreeConfig() config.TreeConfig {
	return config.TreeConfig{
		Concepts:     []string{"loops", "conditionals", "recursion"},
		Difficulties: []string{"very easy", "easy", "medium", "hard", "very hard"},
	}
}

func TestCreateSessionInitializesTree(t *testing.T) {
	s := NewSessionService()
	session, err := s.CreateSession("my-tree", testTreeConfig())
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.Equal(t, "my-tree", session.TreeName)

	tr, err := s.GetTree(session.ID)
	require.NoError(t, err)
	require.Len(t, tr.Roots, 3)
}

func TestGetSessionUnknownIDReturnsNotFound(t *testing.T) {
	s := NewSessionService()
	_, err := s.GetSession("does-not-exist")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestReplaceTreeSwapsRegisteredTree(t *testing.T) {
	s := NewSessionService()
	session, err := s.CreateSession("my-tree", testTreeConfig())
	require.NoError(t, err)

	replacement, err := s.CreateSession("scratch", testTreeConfig())
	require.NoError(t, err)
	newTree, err := s.GetTree(replacement.ID)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceTree(session.ID, newTree))
	got, err := s.GetTree(session.ID)
	require.NoError(t, err)
	require.Same(t, newTree, got)
}

func TestReplaceTreeUnknownSessionErrors(t *testing.T) {
	s := NewSessionService()
	require.ErrorIs(t, s.ReplaceTree("nope", nil), apperrors.ErrSessionNotFound)
}

func TestListSessionsReturnsAllCreated(t *testing.T) {
	s := NewSessionService()
	_, err := s.CreateSession("a", testTreeConfig())
	require.NoError(t, err)
	_, err = s.CreateSession("b", testTreeConfig())
	require.NoError(t, err)

	require.Len(t, s.ListSessions(), 2)
}
