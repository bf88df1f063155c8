package webserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/hub"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/notary"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/notify"
)

type TLSConfig struct {
	Mode     string // "self-signed", "manual", or "" (disabled)
	CertFile string
	KeyFile  string
	CacheDir string
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  string
	RefreshTokenTTL string
}

type Config struct {
	Host string
	Port int
	TLS  TLSConfig
	Auth AuthConfig
}

type Server struct {
	store    *db.DB
	feed     *hub.Hub
	notifier *notify.Notifier
	notary   *notary.Client
	cfg      Config
	logger   *slog.Logger
	httpSrv  *http.Server
}

func New(store *db.DB, feedHub *hub.Hub, notifier *notify.Notifier, notaryClient *notary.Client, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    store,
		feed:     feedHub,
		notifier: notifier,
		notary:   notaryClient,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	mux.HandleFunc("GET /ws", s.handleFeed)

	mux.HandleFunc("POST /api/tourists", s.handleCreateTourist)
	mux.HandleFunc("GET /api/tourists", s.handleListTourists)
	mux.HandleFunc("GET /api/tourists/{id}", s.handleGetTourist)
	mux.HandleFunc("POST /api/tourists/{id}/location", s.handleLocationPing)

	mux.HandleFunc("POST /api/alerts", s.handleCreateAlert)
	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/ack", s.handleAckAlert)

	mux.HandleFunc("POST /api/incidents", s.handleOpenIncident)
	mux.HandleFunc("GET /api/incidents", s.handleListIncidents)
	mux.HandleFunc("POST /api/incidents/{id}/status", s.handleIncidentStatus)
	mux.HandleFunc("POST /api/incidents/{id}", s.handleUpdateIncident)

	mux.HandleFunc("POST /api/anomalies", s.handleFlagAnomaly)
	mux.HandleFunc("GET /api/anomalies", s.handleListAnomalies)
	mux.HandleFunc("POST /api/anomalies/{id}/status", s.handleAnomalyStatus)

	mux.HandleFunc("POST /api/efirs", s.handleFileEFIR)
	mux.HandleFunc("GET /api/efirs", s.handleListEFIRs)
	mux.HandleFunc("POST /api/efirs/{id}", s.handleUpdateEFIR)

	mux.HandleFunc("POST /api/authorities", s.handleCreateAuthority)
	mux.HandleFunc("GET /api/authorities", s.handleListAuthorities)
	mux.HandleFunc("POST /api/authorities/{id}", s.handleUpdateAuthority)

	publicPaths := []string{"/api/auth/login", "/api/auth/refresh", "/api/auth/logout"}
	return jwtMiddleware(s.cfg.Auth.JWTSecret, publicPaths, mux)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}

	tlsConf, err := s.tlsConfig()
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	s.httpSrv.TLSConfig = tlsConf

	go func() {
		var err error
		if tlsConf != nil {
			err = s.httpSrv.ListenAndServeTLS("", "")
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("webserver", "err", err)
		}
	}()
	s.logger.Info("webserver listening", "addr", addr, "tls", tlsConf != nil)
	return nil
}

// Stop shuts the HTTP listener down and drops every live feed connection.
func (s *Server) Stop(ctx context.Context) error {
	s.feed.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) accessTokenTTL() time.Duration {
	if d, err := time.ParseDuration(s.cfg.Auth.AccessTokenTTL); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}

func (s *Server) refreshTokenTTL() time.Duration {
	if d, err := time.ParseDuration(s.cfg.Auth.RefreshTokenTTL); err == nil && d > 0 {
		return d
	}
	return 168 * time.Hour
}
