// Command cookieguard-example serves a small application behind the forced
// SSL and signed cookie middlewares configured from a YAML file.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitalvas/cookieguard/config"
	"github.com/vitalvas/cookieguard/metrics"
	"github.com/vitalvas/cookieguard/signedcookie"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	configPath := flag.String("config", "cookieguard.yaml", "path to the YAML configuration")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()

	mw, err := cfg.Middleware(config.Options{
		Logger:   logger,
		Recorder: metrics.New(reg),
	})
	if err != nil {
		logger.Error("build middleware", slog.Any("error", err))
		os.Exit(1)
	}

	sessionName := signedcookie.DefaultSessionName
	if cfg.SignedCookie != nil && cfg.SignedCookie.SessionName != "" {
		sessionName = cfg.SignedCookie.SessionName
	}

	app := &application{sessionName: sessionName}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(mw)
		r.Post("/login", app.login)
		r.Get("/whoami", app.whoami)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("listening", slog.String("addr", *addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

type application struct {
	sessionName string
}

// login issues a fresh session id and a remember_me cookie. The
// middleware signs whichever of them the policy selects.
func (a *application) login(w http.ResponseWriter, r *http.Request) {
	user := r.FormValue("user")
	if user == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.sessionName,
		Value:    uuid.NewString(),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "remember_me",
		Value:    user,
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// whoami reports the cookies that survived verification.
func (a *application) whoami(w http.ResponseWriter, r *http.Request) {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session": a.sessionName,
		"cookies": cookies,
	})
}
