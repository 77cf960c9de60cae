package main

import (
	"log"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/server"
)

func main() {
	srv := server.NewServer()

	log.Printf("Listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server stopped: %s", err)
	}
}
