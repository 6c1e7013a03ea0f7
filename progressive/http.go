package progressive

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/pif/horosafe"
	"github.com/hazyhaar/pif/imagefield"
	"github.com/hazyhaar/pif/kit"
	"github.com/hazyhaar/pif/progressive/internal/metrics"
	"github.com/hazyhaar/pif/shield"
)

// Handler returns the full HTTP API with its middleware stack.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(imagefield.MaxUpload) {
		r.Use(mw)
	}
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the API routes on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/upgrade", s.handleUpgrade)
	r.Post("/api/v1/render", s.handleRender)

	r.Get("/api/v1/pages/{page_id}/loads", s.handleLoads)
	r.Get("/api/v1/pages/{page_id}/report", s.handleReport)
	r.Get("/api/v1/metrics", s.handleMetrics)

	if s.media != nil {
		r.Put("/api/v1/images/{name}", s.handleUpload)
		prefix := "/" + strings.Trim(s.media.URLPrefix, "/") + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.media.Root))))
	}
}

func (s *Service) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	body, err := horosafe.LimitedReadAll(r.Body, s.cfg.MaxDocument)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, horosafe.ErrTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeError(w, code, err)
		return
	}
	q := r.URL.Query()
	ctx := r.Context()
	if id := q.Get("page_id"); id != "" {
		ctx = kit.WithPageID(ctx, id)
	}
	resp, err := s.Upgrade(ctx, &UpgradeRequest{
		HTML:    string(body),
		BaseURL: q.Get("base"),
	})
	if err != nil {
		shield.GetLogger(r.Context()).Warn("progressive: upgrade failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleRender(w http.ResponseWriter, r *http.Request) {
	var f imagefield.Field
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.Render(r.Context(), &f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(resp.HTML))
}

func (s *Service) handleLoads(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errNoStore)
		return
	}
	loads, err := s.store.ListLoads(r.Context(), chi.URLParam(r, "page_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loads": loads})
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errNoStore)
		return
	}
	rep, err := s.store.LatestReport(r.Context(), chi.URLParam(r, "page_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, errors.New("no report for page"))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errNoStore)
		return
	}
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		limit = n
	}
	var since time.Time
	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		since = time.Now().Add(-d)
	}
	ms, err := metrics.Query(r.Context(), s.store.DB, q.Get("name"), since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": ms})
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := horosafe.ValidateFileName(name); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := s.media.Save(name, r.Body)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, horosafe.ErrTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeError(w, code, err)
		return
	}
	f.Alt = r.URL.Query().Get("alt")
	out, err := imagefield.Render(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"field": f, "html": string(out)})
}

var errNoStore = errors.New("store not configured")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
