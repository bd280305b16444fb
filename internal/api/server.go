// Package api is the read-only HTTP surface over the directory: health,
// establishment lookup by slug, accessibility records and the field registry.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
	"github.com/acceslibre/erp-cli/internal/store"
)

// Directory is the subset of the store the API reads from.
type Directory interface {
	GetErpBySlug(ctx context.Context, slug string) (*model.Erp, error)
	GetAccessibilite(ctx context.Context, erpID string) (*model.Accessibilite, error)
	CountPublished(ctx context.Context) (int, error)
}

// NewRouter builds the HTTP handler. The API is open data: wide-open CORS on
// GET is intentional.
func NewRouter(dir Directory) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	s := &server{dir: dir, log: zap.L().Named("api")}

	r.Get("/health", s.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/schema", s.schema)
		r.Get("/erps/{slug}", s.erp)
		r.Get("/erps/{slug}/accessibilite", s.accessibilite)
	})
	return r
}

type server struct {
	dir Directory
	log *zap.Logger
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	n, err := s.dir.CountPublished(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "published": n})
}

func (s *server) erp(w http.ResponseWriter, r *http.Request) {
	e, err := s.dir.GetErpBySlug(r.Context(), chi.URLParam(r, "slug"))
	if eris.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown establishment"})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *server) accessibilite(w http.ResponseWriter, r *http.Request) {
	e, err := s.dir.GetErpBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err == nil {
		var a *model.Accessibilite
		if a, err = s.dir.GetAccessibilite(r.Context(), e.ID); err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"slug":          e.Slug,
				"accessibilite": a,
				"warnings":      a.Warnings(),
			})
			return
		}
	}
	if eris.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no accessibility record"})
		return
	}
	s.fail(w, err)
}

// schemaField is the public shape of one registry entry.
type schemaField struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Section    string   `json:"section"`
	Kind       string   `json:"kind"`
	EnumValues []string `json:"enum_values,omitempty"`
}

var kindNames = map[schema.Kind]string{
	schema.KindBool:   "boolean",
	schema.KindEnum:   "enum",
	schema.KindMulti:  "multi",
	schema.KindNumber: "number",
	schema.KindText:   "text",
}

func (s *server) schema(w http.ResponseWriter, _ *http.Request) {
	out := make([]schemaField, 0, len(schema.FieldNames()))
	for _, name := range schema.FieldNames() {
		f := schema.Get(name)
		out = append(out, schemaField{
			Name:       f.Name,
			Label:      f.Label,
			Section:    f.Section,
			Kind:       kindNames[f.Kind],
			EnumValues: f.EnumValues,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sections": schema.Sections(),
		"fields":   out,
	})
}

func (s *server) fail(w http.ResponseWriter, err error) {
	s.log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
