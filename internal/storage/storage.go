// Package storage connects the app to the object storage holding captured, imported and exported pages
package storage

import (
	"log"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/settings"
	"github.com/UnendingLoop/ScanDesk/internal/storage/miniostorage"
)

// NewPageStorage blocks until the object storage is reachable and the bucket exists.
func NewPageStorage(s settings.Settings, delay time.Duration) *miniostorage.MinioPageStorage {
	for {
		log.Println("Connecting to page storage...")
		client, err := miniostorage.NewMinioClient(miniostorage.Options{
			Addr:   s.MinioAddr,
			User:   s.MinioUser,
			Pass:   s.MinioPass,
			Bucket: s.Bucket,
		})
		if err == nil {
			log.Println("Successfully connected page storage!")
			return client
		}
		log.Printf("Failed to init connection to page storage: %v\nNext retry in %v...", err, delay)
		time.Sleep(delay)
	}
}
