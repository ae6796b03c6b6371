package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mtan/parley/internal/auth"
	"github.com/mtan/parley/internal/config"
	hnd "github.com/mtan/parley/internal/handlers"
	mw "github.com/mtan/parley/internal/middleware"
	"github.com/mtan/parley/internal/store/gormstore"
	"github.com/mtan/parley/internal/ws"
	log "github.com/sirupsen/logrus"
)

var (
	seed    = flag.Bool("seed", false, "populate demo data and exit")
	verbose = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	st, err := gormstore.New(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}

	hasher := auth.NewPasswordHasher()
	tokens := auth.NewTokenManager(cfg.JWTSecret)
	authSvc := auth.NewService(st, hasher, tokens)

	if *seed {
		if err := seedData(st, authSvc); err != nil {
			log.Fatal(err)
		}
		log.Info("seeding complete")
		return
	}

	hub := ws.NewHub(st, authSvc, cfg.FrontendURL)
	authHandler := &hnd.AuthHandler{Auth: authSvc}

	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.Handle("/", mw.Auth(authSvc)(http.HandlerFunc(authHandler.Me))).Methods("GET")
	r.HandleFunc("/ws", hub.ServeWS)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.FrontendURL}),
		handlers.AllowedMethods([]string{"GET", "POST"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowCredentials(),
	)

	log.WithField("addr", cfg.Addr).Info("starting server")
	log.Fatal(http.ListenAndServe(cfg.Addr, cors(r)))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}
