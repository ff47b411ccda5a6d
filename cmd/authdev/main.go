package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/pawhaven/pawhaven-backend/internal/authdev"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	port := os.Getenv("AUTHDEV_PORT")
	if port == "" {
		port = "9999"
	}

	srv := authdev.NewServer()

	log.Printf("🔑 Dev auth service starting on port %s", port)
	if err := http.ListenAndServe(":"+port, srv.Handler()); err != nil {
		log.Fatal("Auth service failed to start:", err)
	}
}
