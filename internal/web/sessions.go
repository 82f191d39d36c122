package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/web/middleware"
)

const sessionCookie = "import_session"

// session is one browser's import workflow plus the period and sites the
// host page last reported for it.
type session struct {
	id       string
	wf       *core.Workflow
	shared   *core.StaticState
	lastSeen time.Time
}

type sessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*session
	ttl         time.Duration
	now         func() time.Time
	newWorkflow func(*core.StaticState) (*core.Workflow, error)
}

func newSessionStore(ttl time.Duration, newWorkflow func(*core.StaticState) (*core.Workflow, error)) *sessionStore {
	return &sessionStore{
		sessions:    make(map[string]*session),
		ttl:         ttl,
		now:         time.Now,
		newWorkflow: newWorkflow,
	}
}

// get returns the live session for id and refreshes its expiry.
func (st *sessionStore) get(id string) (*session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	now := st.now()
	if st.ttl > 0 && now.Sub(sess.lastSeen) > st.ttl {
		delete(st.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// create starts a session with an empty period and no sites.
func (st *sessionStore) create() (*session, error) {
	shared := core.NewStaticState("")
	wf, err := st.newWorkflow(shared)
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:     uuid.NewString(),
		wf:     wf,
		shared: shared,
	}

	st.mu.Lock()
	sess.lastSeen = st.now()
	st.sessions[sess.id] = sess
	st.mu.Unlock()
	return sess, nil
}

// sweep removes expired sessions and returns how many were removed.
func (st *sessionStore) sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.ttl <= 0 {
		return 0
	}
	removed := 0
	now := st.now()
	for id, sess := range st.sessions {
		if now.Sub(sess.lastSeen) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

type sessionKey struct{}

// withSession resolves the session cookie, starting a new session when the
// cookie is missing or expired, and stores the session in the request
// context together with the audit metadata.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *session
		if c, err := r.Cookie(sessionCookie); err == nil {
			sess, _ = s.sessions.get(c.Value)
		}
		if sess == nil {
			var err error
			sess, err = s.sessions.create()
			if err != nil {
				s.respondError(w, r, err, http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cfg.Security.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = WithRequestMetadata(ctx, r)
		ctx = core.ContextWithSessionID(ctx, sess.id)
		middleware.AddLogFields(ctx, "session_id", sess.id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session installed by withSession.
func sessionFrom(r *http.Request) *session {
	sess, _ := r.Context().Value(sessionKey{}).(*session)
	return sess
}
