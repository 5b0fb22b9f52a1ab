package memory

import (
	"testing"

	"content-pipeline-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCreateInitializesSession(t *testing.T) {
	repo := NewSessionRepository()

	session := repo.Create("quantum computing", "academic")

	assert.NotEmpty(t, session.ID)
	_, err := uuid.Parse(session.ID)
	assert.NoError(t, err)
	assert.Equal(t, "quantum computing", session.Topic)
	assert.Equal(t, "academic", session.Taste)
	assert.Equal(t, store.StageResearch, session.Stage)
	assert.Equal(t, store.StatusPendingApproval, session.Status)
	assert.Zero(t, session.Iteration)
}

func TestGetRoundTrip(t *testing.T) {
	repo := NewSessionRepository()
	created := repo.Create("topic", "web-article")

	got, found := repo.Get(created.ID)
	assert.True(t, found)
	assert.Equal(t, created.ID, got.ID)

	_, found = repo.Get("missing-id")
	assert.False(t, found)
}

func TestSavePersistsMutations(t *testing.T) {
	repo := NewSessionRepository()
	session := repo.Create("topic", "web-article")

	session.Stage = store.StageReview
	session.Iteration = 3
	session.ResearchFeedbacks = append(session.ResearchFeedbacks, "add sources")
	repo.Save(session)

	got, found := repo.Get(session.ID)
	assert.True(t, found)
	assert.Equal(t, store.StageReview, got.Stage)
	assert.Equal(t, 3, got.Iteration)
	assert.Equal(t, []string{"add sources"}, got.ResearchFeedbacks)
}

func TestDelete(t *testing.T) {
	repo := NewSessionRepository()
	session := repo.Create("topic", "web-article")

	repo.Delete(session.ID)

	_, found := repo.Get(session.ID)
	assert.False(t, found)
}

func TestOnEvictedFiresOnDelete(t *testing.T) {
	repo := NewSessionRepository()
	var evicted []string
	repo.OnEvicted(func(sessionID string) {
		evicted = append(evicted, sessionID)
	})

	session := repo.Create("topic", "web-article")
	repo.Delete(session.ID)

	assert.Equal(t, []string{session.ID}, evicted)
}
