//go:build ignore

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/tgregoire/invgov-backend/config"
	"github.com/tgregoire/invgov-backend/database"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/services"
	"github.com/tgregoire/invgov-backend/shared"
)

// Standalone operator diagnostic: go run health_check.go
func main() {
	fmt.Printf("Investment backend health check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	cfg := config.LoadConfig()
	healthScore := 0
	totalTests := 3

	// Test 1: cache database
	fmt.Print("Cache database: ")
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		defer database.Close()
		if err := database.HealthCheck(); err != nil {
			fmt.Printf("FAILED (%v)\n", err)
		} else {
			fmt.Println("OK")
			healthScore++
		}
	}

	// Test 2: remote system of record
	fmt.Print("Remote store: ")
	remoteConfig := shared.RemoteConfig{
		BaseURL:            cfg.RemoteBaseURL,
		APIToken:           cfg.RemoteAPIToken,
		HTTPRequestTimeout: cfg.GetRemoteTimeout(),
		RequestRateLimit:   500 * time.Millisecond,
		MaxRetryAttempts:   1,
	}
	remote := services.NewHTTPRemoteStore(remoteConfig)
	if err := remote.Ping(); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		fmt.Println("OK")
		healthScore++
	}

	// Test 3: cached data freshness
	fmt.Print("Cached requests: ")
	if database.DB != nil {
		store := services.NewPostgresStore(database.DB)
		if requests, err := store.ListRequests(models.RequestFilter{}); err != nil {
			fmt.Printf("FAILED (%v)\n", err)
		} else {
			fmt.Printf("OK (%d requests)\n", len(requests))
			healthScore++
		}
	} else {
		fmt.Println("SKIPPED (no database)")
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Health: %d/%d checks passed\n", healthScore, totalTests)
}
