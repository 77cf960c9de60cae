// Command-line tool that runs one scheduler sweep over every location.
// Meant to be invoked from cron.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/scheduler"
)

func main() {
	db, err := database.GetMainDB()
	if err != nil {
		log.Printf("Failed to initialize database: %s", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := scheduler.New(db).Run(ctx)
	if err != nil {
		log.Printf("Sweep failed: %s", err)
		os.Exit(1)
	}

	fmt.Printf("Sweep finished: %d reminders, %d escalations, %d no-response transitions\n",
		result.Reminders, result.Escalations, result.NoResponse)
}
