// Package example is a small CMMS backend (work orders only) serving the
// layout, content pages, JSON endpoints and module scripts the engine
// consumes. It backs the CLI demo and the end-to-end tests.
package example

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/nosurf"
	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/lib/config"
)

// LayoutPath is where the layout page is served.
const LayoutPath = "/layout"

// ModuleScript is the lazily loaded script of the workorder module.
const ModuleScript = "/js/pages/workorder.js"

const workOrderScript = `cmms.pages.register("workorder-detail", function (root) {
  root.setAttribute("data-enhanced", root.pageId);
});
`

// Server serves the demo backend.
type Server struct {
	store  *Store
	logger *slog.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server over store.
func NewServer(store *Store, opts ...Option) *Server {
	s := &Server{store: store, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, LayoutPath, http.StatusFound)
	})
	r.Get(LayoutPath, s.handleLayout)
	r.Get(ModuleScript, s.handleScript)
	r.Get("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(partialOnly)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/workorder/list", s.handleList)
		r.Get("/workorder/new", s.handleNew)
		r.Get("/workorder/detail/{id}", s.handleDetail)
	})

	r.Route("/api/workorders", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Delete("/{id}", s.handleDelete)
		r.Post("/{id}/close", s.handleClose)
	})
	s.router = r
	return s
}

// Modules maps route prefixes to module scripts, for the engine config.
func Modules() map[string]string {
	return map[string]string{"workorder": ModuleScript}
}

// Config returns an engine configuration for a demo server at baseURL,
// with the module map and the script runner enabled.
func Config(baseURL string) (*config.Config, error) {
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.LayoutPath = LayoutPath
	cfg.Modules = Modules()
	cfg.InlineScripts = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Handler returns the router wrapped in CSRF protection. Rejected requests
// get a 403 with a JSON message.
func (s *Server) Handler() http.Handler {
	h := nosurf.New(s.router)
	h.SetBaseCookie(http.Cookie{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	h.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("example: csrf rejected", "method", r.Method, "path", r.URL.Path, "reason", nosurf.Reason(r))
		hxnav.WriteError(w, http.StatusForbidden, "Your session expired. Reload the page.")
	}))
	return h
}

// partialOnly sends full-page visits of content URLs to the layout, which
// loads them into its slot.
func partialOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hxnav.IsPartialRequest(r) {
			http.Redirect(w, r, hxnav.VisibleURL(LayoutPath, "content", r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if err := hxnav.Render(w, r, Layout(nosurf.Token(r))); err != nil {
		s.logger.Error("example: render layout", "error", err)
	}
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = io.WriteString(w, workOrderScript)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, `<!DOCTYPE html><html><body><p>Signed out.</p></body></html>`)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	open, closed := s.store.Stats()
	if err := hxnav.Render(w, r, Dashboard(open, closed)); err != nil {
		s.logger.Error("example: render dashboard", "error", err)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if err := hxnav.Render(w, r, WorkOrderList(s.store.List())); err != nil {
		s.logger.Error("example: render list", "error", err)
	}
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	if err := hxnav.Render(w, r, WorkOrderNew(nosurf.Token(r))); err != nil {
		s.logger.Error("example: render form", "error", err)
	}
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	wo, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := hxnav.Render(w, r, WorkOrderDetail(wo)); err != nil {
		s.logger.Error("example: render detail", "error", err)
	}
}

type createRequest struct {
	Title string `json:"title"`
	Plant string `json:"plant"`
	Items []Item `json:"items"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		hxnav.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		hxnav.WriteError(w, http.StatusUnprocessableEntity, "title is required")
		return
	}
	var items []Item
	for _, it := range req.Items {
		if strings.TrimSpace(it.Name) != "" {
			items = append(items, it)
		}
	}
	wo := s.store.Add(req.Title, req.Plant, items)
	s.logger.Info("example: work order created", "id", wo.ID)
	hxnav.WriteJSON(w, http.StatusCreated, map[string]any{
		"workOrderId": wo.ID,
		"message":     "Work order " + wo.ID + " created",
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Delete(id) {
		hxnav.WriteError(w, http.StatusNotFound, "work order "+id+" not found")
		return
	}
	s.logger.Info("example: work order deleted", "id", id)
	hxnav.WriteJSON(w, http.StatusOK, map[string]any{"message": "Work order " + id + " deleted"})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Close(id) {
		hxnav.WriteError(w, http.StatusNotFound, "work order "+id+" not found")
		return
	}
	hxnav.WriteJSON(w, http.StatusOK, map[string]any{"message": "Work order " + id + " closed"})
}
