package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ksutools/portalgate/internal/cas"
	"github.com/ksutools/portalgate/internal/proxy"
	"github.com/ksutools/portalgate/internal/session"
	"github.com/ksutools/portalgate/internal/upstream"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type sessionResponse struct {
	State              session.State      `json:"state"`
	User               *upstream.Identity `json:"user,omitempty"`
	RememberedUsername string             `json:"rememberedUsername,omitempty"`
}

type cachedResponse struct {
	Data      any   `json:"data"`
	FromCache bool  `json:"fromCache"`
	FetchedAt int64 `json:"fetchedAt"` // unix milliseconds
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.app.Session.Login(r.Context(), req.Username, req.Password, req.Remember)
	if err != nil {
		if errors.Is(err, cas.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		State: s.app.Session.State(),
		User:  user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.app.Session.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.Session.AutoLogin(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoSavedSession) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		State: s.app.Session.State(),
		User:  user,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{
		State:              s.app.Session.State(),
		RememberedUsername: s.app.Session.RememberedUsername(),
	}
	if _, user, err := s.app.Session.Current(); err == nil {
		resp.User = user
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, _, err := s.app.Session.Current()
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	profile, err := s.app.Client.Profile(r.Context(), token)
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	token, user, err := s.app.Session.Current()
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	res, err := s.app.Cached.Grades(r.Context(), token, user.UserUID, cacheOptions(r))
	if err != nil {
		// Surface the failure together with the last known value, if any;
		// showing it is the caller's choice.
		body := map[string]any{"error": err.Error()}
		if stale, ok := s.app.Cached.StaleGrades(user.UserUID); ok {
			body["stale"] = cachedResponse{
				Data:      stale.Data,
				FromCache: true,
				FetchedAt: stale.FetchedAt.UnixMilli(),
			}
		}
		writeJSON(w, upstreamStatus(err), body)
		return
	}

	writeJSON(w, http.StatusOK, cachedResponse{
		Data:      res.Data,
		FromCache: res.FromCache,
		FetchedAt: res.FetchedAt.UnixMilli(),
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	token, user, err := s.app.Session.Current()
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = upstream.FormatYearMonth(time.Now())
	}

	res, err := s.app.Cached.CalendarMonth(r.Context(), token, user.UserUID, month, cacheOptions(r))
	if err != nil {
		body := map[string]any{"error": err.Error()}
		if stale, ok := s.app.Cached.StaleCalendarMonth(user.UserUID, month); ok {
			body["stale"] = cachedResponse{
				Data:      stale.Data,
				FromCache: true,
				FetchedAt: stale.FetchedAt.UnixMilli(),
			}
		}
		writeJSON(w, upstreamStatus(err), body)
		return
	}

	writeJSON(w, http.StatusOK, cachedResponse{
		Data:      res.Data,
		FromCache: res.FromCache,
		FetchedAt: res.FetchedAt.UnixMilli(),
	})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	var d proxy.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request descriptor")
		return
	}

	env, err := s.app.Router.Execute(r.Context(), &d)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// cacheOptions reads force and maxAgeMs query parameters.
func cacheOptions(r *http.Request) upstream.CacheOptions {
	q := r.URL.Query()
	opts := upstream.CacheOptions{
		Force: q.Get("force") == "true" || q.Get("force") == "1",
	}
	if raw := q.Get("maxAgeMs"); raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			opts.MaxAge = time.Duration(ms) * time.Millisecond
		}
	}
	return opts
}

// upstreamStatus maps a fetch failure onto an API status. Everything the
// gateway could not get from upstream is a bad-gateway condition; a timed-out
// attempt is reported as such.
func upstreamStatus(err error) int {
	var ue *upstream.Error
	if errors.As(err, &ue) && ue.Kind == upstream.KindTransport && ue.Message == proxy.ErrorTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
