package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/forgeworks/bitbucket-cloud-client/pkg/client"
	"github.com/forgeworks/bitbucket-cloud-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := logging.Setup(logging.FromEnv())

	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "bitbucket-cloud-client/0.1.0")

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", redisURL).Msg("Connected to Redis")

	// Create Bitbucket client
	cfg := client.DefaultConfig(redisClient, userAgent)
	cfg.Token = os.Getenv("BITBUCKET_TOKEN")
	cfg.Username = os.Getenv("BITBUCKET_USERNAME")
	cfg.AppPassword = os.Getenv("BITBUCKET_APP_PASSWORD")

	bbClient, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Bitbucket client")
	}
	defer bbClient.Close()

	// HTTP Server
	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/ready", readyHandler(redisClient))
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/bb/", bbProxyHandler(bbClient))

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("user_agent", userAgent).
		Msg("Starting Bitbucket proxy server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports readiness based on the Redis connection.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// bbProxyHandler forwards /bb/* requests to the Bitbucket API through the
// caching, rate-limited client.
func bbProxyHandler(bbClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Example: /bb/2.0/repositories/acme -> /2.0/repositories/acme
		endpoint := strings.TrimPrefix(r.URL.Path, "/bb")
		if r.URL.RawQuery != "" {
			endpoint += "?" + r.URL.RawQuery
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		resp, err := bbClient.Get(ctx, endpoint)
		if err != nil {
			http.Error(w, fmt.Sprintf("Bitbucket request failed: %v", err), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			// Headers are already sent; nothing left to do but log.
			bodyLogger := logging.NewLogger("bb-proxy")
			bodyLogger.Error().Err(err).Msg("Failed to write response body")
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
