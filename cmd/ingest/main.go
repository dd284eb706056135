// Command ingest crawls an OEM parts catalog through its sitemap tree and
// merges every catalog page into the relational catalog store.
//
// Usage:
//
//	ingest crawl [--root URL] [--workers N] [--interval D] [--resume]
//	ingest retry-failed
//	ingest migrate
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Errorf("❌ %v", err)
		os.Exit(1)
	}
}
