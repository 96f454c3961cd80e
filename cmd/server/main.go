package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/api"
	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/db"
	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/reaper"
	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	dbPath := os.Getenv("WHITEBOARD_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/whiteboard.db"
	}

	database, err := db.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	hub := ws.NewHub(database)
	go hub.Run()

	sweeper := reaper.New(database, reaper.DefaultConfig())
	sweeper.Start()
	defer sweeper.Stop()

	apiHandler := api.New(hub, database)

	// WebSocket endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	http.HandleFunc("/health", apiHandler.HealthHandler)
	http.HandleFunc("/api/stats", apiHandler.StatsHandler)
	http.HandleFunc("/api/rooms", apiHandler.RoomsRouter)
	http.HandleFunc("/api/rooms/", apiHandler.RoomsRouter)

	// Apply CORS middleware
	handler := corsMiddleware(http.DefaultServeMux)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		sweeper.Stop()
		database.Close()
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	log.Printf("Whiteboard server starting on :%s", port)
	log.Printf("Database: %s", dbPath)
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Join:      POST /api/rooms/join")
	log.Println("  - Room:      GET /api/rooms/{id}")

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
