// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	COHORT_HOST="0.0.0.0"
//	COHORT_PORT="8080"
//	COHORT_HEALTH_PORT="9090"
//	COHORT_READ_TIMEOUT="15s"
//	COHORT_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	COHORT_POSTGRES_URL="postgres://localhost/cohort"
//	COHORT_POSTGRES_MAX_CONNS="20"
//	COHORT_REDIS_URL="redis://localhost:6379"
//	COHORT_REDIS_POOL_SIZE="10"
//
// Session settings:
//
//	COHORT_SESSION_TTL="24h"
//	COHORT_SESSION_SLIDING="false"
//
// Auth settings:
//
//	COHORT_MAX_CONCURRENT_HASHES="4"
//
// Observability settings:
//
//	COHORT_LOG_LEVEL="info"  # debug, info, warn, error
//	COHORT_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Session TTL: %s\n", cfg.Storage.SessionTTL)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
