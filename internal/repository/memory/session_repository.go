package memory

import (
	"time"

	"content-pipeline-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps pipeline sessions in process memory. Sessions are
// process-lifetime only; the TTL just bounds abandoned sessions.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Default expiration of 1 hour, purge sweep every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

// Create allocates a new session at the start of the pipeline.
func (r *SessionRepository) Create(topic, taste string) *store.Session {
	session := &store.Session{
		ID:     uuid.NewString(),
		Topic:  topic,
		Taste:  taste,
		Stage:  store.StageResearch,
		Status: store.StatusPendingApproval,
	}
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
	return session
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

// Save writes session state back and refreshes its expiration.
func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// OnEvicted registers a callback invoked whenever a session is deleted or
// expires out of the cache, so callers can release state keyed by session ID.
func (r *SessionRepository) OnEvicted(fn func(sessionID string)) {
	r.cache.OnEvicted(func(key string, _ interface{}) {
		fn(key)
	})
}
