// Package settings turns the flat string config of the app into typed values with defaults
package settings

import (
	"log"
	"strconv"
	"strings"
	"time"
)

// Getter is the part of *config.Config the app reads from.
type Getter interface {
	GetString(key string) string
}

type Settings struct {
	AppPort string
	GinMode string

	PostgresDSN string

	KafkaBroker     string
	CaptureTopic    string
	GroupID         string
	OperationsTopic string

	Bucket        string
	MinioUser     string
	MinioPass     string
	MinioAddr     string
	CapturePrefix string
	ExportPrefix  string

	ThumbnailSize      int
	OperationWorkers   int
	CheckpointInterval time.Duration
	DeleteAfterExport  bool
}

func Load(cfg Getter) Settings {
	return Settings{
		AppPort:            stringOr(cfg, "APP_PORT", "8080"),
		GinMode:            stringOr(cfg, "GIN_MODE", "release"),
		PostgresDSN:        cfg.GetString("POSTGRES_DSN"),
		KafkaBroker:        stringOr(cfg, "KAFKA_BROKER", "kafka:9092"),
		CaptureTopic:       stringOr(cfg, "KAFKA_CAPTURE_TOPIC", "captures"),
		GroupID:            stringOr(cfg, "KAFKA_GROUPID", "scandesk"),
		OperationsTopic:    stringOr(cfg, "KAFKA_OPERATIONS_TOPIC", "operations"),
		Bucket:             stringOr(cfg, "BUCKET_NAME", "default"),
		MinioUser:          cfg.GetString("MINIO_USER"),
		MinioPass:          cfg.GetString("MINIO_PASS"),
		MinioAddr:          stringOr(cfg, "MINIO_CONTAINER_NAME", "minio"),
		CapturePrefix:      stringOr(cfg, "CAPTURE_PREFIX", "captures/"),
		ExportPrefix:       stringOr(cfg, "EXPORT_PREFIX", "exports/"),
		ThumbnailSize:      intOr(cfg, "THUMBNAIL_SIZE", 256),
		OperationWorkers:   intOr(cfg, "OPERATION_WORKERS", 2),
		CheckpointInterval: durationOr(cfg, "CHECKPOINT_INTERVAL", time.Minute),
		DeleteAfterExport:  boolOr(cfg, "DELETE_AFTER_EXPORT", false),
	}
}

func stringOr(cfg Getter, key, def string) string {
	if v := strings.TrimSpace(cfg.GetString(key)); v != "" {
		return v
	}
	return def
}

func intOr(cfg Getter, key string, def int) int {
	raw := strings.TrimSpace(cfg.GetString(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Incorrect value %q for %s. Using default value %d...", raw, key, def)
		return def
	}
	return v
}

func durationOr(cfg Getter, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(cfg.GetString(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Printf("Incorrect value %q for %s. Using default value %v...", raw, key, def)
		return def
	}
	return v
}

func boolOr(cfg Getter, key string, def bool) bool {
	raw := strings.TrimSpace(cfg.GetString(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Incorrect value %q for %s. Using default value %v...", raw, key, def)
		return def
	}
	return v
}
