// Command-line tool that marks stale processing claims as expired so a
// later delivery of the same event can retry the work.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/ledger"
)

func main() {
	age := flag.Duration("age", ledger.DefaultReclaimAfter, "expire processing claims older than this")
	flag.Parse()

	db, err := database.GetMainDB()
	if err != nil {
		log.Printf("Failed to initialize database: %s", err)
		os.Exit(1)
	}

	expired, err := ledger.New(db).ExpireStale(*age)
	if err != nil {
		log.Printf("Failed to expire claims: %s", err)
		os.Exit(1)
	}

	fmt.Printf("Expired %d stale claims\n", expired)
}
