package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskboard-api/api"
	"taskboard-api/auth"
	"taskboard-api/repository"
	"taskboard-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	var redisClient *redis.Client
	if connStr := os.Getenv("REDIS_CONNECTION_STRING"); connStr != "" {
		redisClient = redis.NewClient(redisOptions(connStr))
	}

	kv, queue := buildBackend(redisClient)
	store := storage.NewStore(kv, logger)

	var docs repository.Documents = store
	var authDocs auth.Documents = store
	if redisClient != nil && os.Getenv("STORAGE_BACKEND") == "aztable" {
		ttl := envDuration("CACHE_TTL", time.Minute)
		cache := storage.NewCache(store, redisClient, ttl)
		docs = cache
		authDocs = cache
	}

	var repoOpts []repository.Option
	var publisher *repository.Publisher
	if queue != nil {
		publisher = repository.NewPublisher(queue, logger, repository.PublisherConfig{
			Workers:        envInt("PUBLISH_WORKERS", 4),
			Buffer:         envInt("PUBLISH_BUFFER", 256),
			HandoffTimeout: envDuration("PUBLISH_HANDOFF_TIMEOUT", 15*time.Millisecond),
		})
		defer publisher.Close()
		repoOpts = append(repoOpts, repository.WithPublisher(publisher))
	}
	repo := repository.New(docs, repoOpts...)

	secret := []byte(os.Getenv("SESSION_SECRET"))
	sessionOpts := []auth.Option{}
	if d := envDuration("AUTH_LATENCY", 0); d > 0 {
		sessionOpts = append(sessionOpts, auth.WithLatency(d))
	}
	sessions := auth.NewStore(authDocs, secret, sessionOpts...)

	authn := buildAuthenticator(secret)

	var deduper api.Deduper
	if redisClient != nil {
		deduper = api.NewRedisDeduper(redisClient, envDuration("DEDUPER_TTL", 24*time.Hour))
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, repo, sessions, authn, deduper, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// buildBackend selects the durable KV and the optional event queue from env.
func buildBackend(redisClient *redis.Client) (storage.KV, *storage.EventQueue) {
	switch backend := os.Getenv("STORAGE_BACKEND"); backend {
	case "aztable":
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		tableName := os.Getenv("DOCUMENTS_TABLE")
		if connStr == "" || tableName == "" {
			log.Fatal("missing azure storage config")
		}
		kv, err := storage.NewTableKV(connStr, tableName)
		if err != nil {
			log.Fatalf("table storage: %v", err)
		}
		var queue *storage.EventQueue
		if queueName := os.Getenv("EVENTS_QUEUE"); queueName != "" {
			queue, err = storage.NewEventQueue(connStr, queueName)
			if err != nil {
				log.Fatalf("event queue: %v", err)
			}
		}
		return kv, queue
	case "memory":
		return storage.NewMemoryKV(), nil
	case "redis", "":
		if redisClient == nil {
			log.Fatal("missing redis config")
		}
		return storage.NewRedisKV(redisClient), nil
	default:
		log.Fatalf("unknown STORAGE_BACKEND: %s", backend)
		return nil, nil
	}
}

func buildAuthenticator(secret []byte) api.Authenticator {
	if os.Getenv("AUTH_MODE") == "jwks" {
		audience := os.Getenv("AUTH0_AUDIENCE")
		domainName := os.Getenv("AUTH0_DOMAIN")
		if audience == "" || domainName == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domainName)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		return api.NewJWKSAuth(jwks, audience, "https://"+domainName+"/")
	}
	if len(secret) == 0 {
		log.Fatal("missing SESSION_SECRET")
	}
	return api.NewLocalAuth(secret)
}

// redisOptions parses either a redis URL or the comma-separated
// host,password=…,ssl=… form used by managed caches.
func redisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return n
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}
