package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/api"
	"github.com/joeblew999/plat-annotate/internal/db"
	"github.com/joeblew999/plat-annotate/internal/events"
	"github.com/joeblew999/plat-annotate/internal/scene"
	"github.com/joeblew999/plat-annotate/internal/service"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	// Viewport is the default camera of new sessions.
	Viewport scene.Viewport
	// NoDB skips opening DuckDB; queries answer 503.
	NoDB bool
}

// Server is the annotation HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
}

// New creates a new annotation server.
func New(cfg Config) *Server {
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-annotate API", "1.0.0")
	humaConfig.Info.Description = "Map annotation API: sessions of symbols, circles, lines and fills that can be clicked, dragged and exported as vector tiles."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
	}

	if !cfg.NoDB {
		conn, err := db.Open(context.Background(), db.Config{
			DataDir:    cfg.DataDir,
			DBName:     "annotations",
			Extensions: []string{"spatial"},
		})
		if err != nil {
			logrus.WithError(err).Warn("DuckDB unavailable, annotations are stored as GeoJSON only")
		} else {
			s.db = conn
		}
	}

	bus := events.NewBus()
	s.services = &api.Services{
		Sessions: service.NewSessionService(service.Config{
			DataDir:  cfg.DataDir,
			Bus:      bus,
			DB:       s.db,
			Viewport: cfg.Viewport,
		}),
		Archives: service.NewArchiveService(cfg.DataDir),
		Sources:  service.NewSourceService(cfg.DataDir),
		Bus:      bus,
		DB:       s.db,
		DataDir:  cfg.DataDir,
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close stops every session and closes the database.
func (s *Server) Close() error {
	s.services.Sessions.Close()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)

	// Exported archives, served with range support for PMTiles clients
	tilesDir := filepath.Join(s.config.DataDir, "tiles")
	s.mux.Handle("/tiles/", http.StripPrefix("/tiles/", s.handleTiles(tilesDir)))

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-annotate",
		"status":  "running",
	})
}

func (s *Server) handleTiles(tilesDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		http.FileServer(http.Dir(tilesDir)).ServeHTTP(w, r)
	})
}
