package main

import (
	"context"
	"crypto/tls"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/skychatorg/skychat-xterm/internal/auth"
	"github.com/skychatorg/skychat-xterm/internal/broker"
	"github.com/skychatorg/skychat-xterm/internal/config"
	"github.com/skychatorg/skychat-xterm/internal/crypto"
	"github.com/skychatorg/skychat-xterm/internal/database"
	"github.com/skychatorg/skychat-xterm/internal/handlers"
	"github.com/skychatorg/skychat-xterm/internal/logging"
	"github.com/skychatorg/skychat-xterm/internal/logutil"
	"github.com/skychatorg/skychat-xterm/internal/middleware"
	"github.com/skychatorg/skychat-xterm/internal/runner"
)

//go:embed frontend/dist
var frontendFS embed.FS

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--create-admin":
			runCLICommand("create-admin")
			return
		case "--reset-password":
			runCLICommand("reset-password")
			return
		}
	}

	config.Load()
	logging.Init(config.Cfg.LogPath)

	if err := database.Init(filepath.Join(config.Cfg.DataDir, "xterm.db")); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	log.Printf("Config: AuthDisabled=%v, SkyChatURL=%s, IdleTimeout=%s",
		config.Cfg.AuthDisabled, config.Cfg.SkyChatURL, config.Cfg.IdleTimeout)

	ctx := context.Background()

	spawn := runner.Config{
		Backend:      config.Cfg.Runner,
		Shell:        config.Cfg.Shell,
		DockerImage:  config.Cfg.DockerImage,
		DockerMemory: config.Cfg.DockerMemory,
		DockerCPUs:   config.Cfg.DockerCPUs,
	}
	if config.Prof != nil {
		spawn.Args = config.Prof.Args
		spawn.ExtraEnv = config.Prof.Env
	}
	if err := runner.Init(ctx, spawn); err != nil {
		log.Fatalf("Runner init: %v", err)
	}

	registry := broker.NewRegistry(broker.Options{
		Runner:   runner.Get(),
		DataDir:  config.Cfg.DataDir,
		Cols:     uint16(config.Cfg.TermCols),
		Rows:     uint16(config.Cfg.TermRows),
		Recorder: dbRecorder{},
	})
	handlers.Broker = registry

	sessionStore := auth.NewSessionStore(config.Cfg.SessionTTL)
	handlers.SessionStore = sessionStore

	if config.Cfg.AuthDisabled {
		handlers.TokenValidator = auth.StaticValidator{}
		log.Println("WARNING: authentication disabled, accepting any credentials")
	} else {
		handlers.TokenValidator = auth.NewSkyChatValidator(config.Cfg.SkyChatURL)
	}

	reaper := newReaperJob(registry, sessionStore, config.Cfg.IdleTimeout)
	if err := reaper.start(config.Cfg.SweepInterval); err != nil {
		log.Fatalf("Reaper init: %v", err)
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health (no auth)
	r.Get("/health", handlers.HealthCheck)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth endpoints (no auth required)
		r.Post("/auth/login", handlers.Login)
		r.Post("/auth/logout", handlers.Logout)

		// Protected routes (require auth)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionStore))

			r.Get("/auth/me", handlers.GetCurrentUser)
			r.Get("/terminal", handlers.TerminalWS)
			// Users may revoke their own session; the handler checks.
			r.Delete("/sessions/{identity}", handlers.RevokeSession)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/sessions", handlers.ListSessions)
				r.Get("/events", handlers.GetTerminalEvents)
				r.Get("/logs/server", handlers.GetServerLogs)
			})
		})
	})

	// SPA static files (embedded)
	distFS, _ := fs.Sub(frontendFS, "frontend/dist")
	spa := middleware.NewSPAHandler(distFS)
	r.NotFound(spa.ServeHTTP)

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	scheme := "http"
	if config.Cfg.TLSEnabled {
		cert, _, err := crypto.GetServerCert(strings.Split(config.Cfg.TLSHosts, ","))
		if err != nil {
			log.Fatalf("TLS init: %v", err)
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
		scheme = "https"
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s (%s)", config.Cfg.ListenAddr, scheme)
		var err error
		if config.Cfg.TLSEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	reaper.stop()
	registry.ShutdownAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// dbRecorder persists broker lifecycle events as audit rows. Write failures
// only cost the audit entry, never the session operation.
type dbRecorder struct{}

func (dbRecorder) Record(identity, event, detail string) {
	if err := database.RecordTerminalEvent(identity, event, logutil.Truncate(detail, 256)); err != nil {
		log.Printf("[audit] record %s for %s: %v", event, identity, err)
	}
}

func runCLICommand(command string) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password")
	fs.Parse(os.Args[2:])

	if *username == "" || *password == "" {
		fmt.Fprintf(os.Stderr, "Usage: skychat-xterm --%s --username <user> --password <pass>\n", command)
		os.Exit(1)
	}

	config.Load()
	if err := database.Init(filepath.Join(config.Cfg.DataDir, "xterm.db")); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	switch command {
	case "create-admin":
		user := &database.User{
			Username:     *username,
			PasswordHash: hash,
			Role:         "admin",
		}
		if err := database.CreateUser(user); err != nil {
			log.Fatalf("Failed to create admin: %v", err)
		}
		fmt.Printf("Admin user '%s' created successfully.\n", *username)

	case "reset-password":
		user, err := database.GetUserByUsername(*username)
		if err != nil {
			log.Fatalf("User '%s' not found", *username)
		}
		if err := database.UpdateUserPassword(user.ID, hash); err != nil {
			log.Fatalf("Failed to update password: %v", err)
		}
		fmt.Printf("Password reset for '%s'.\n", *username)
	}
}
