package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/api"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/audit"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/biometric"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/storage"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/token"

	"github.com/gorilla/mux"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	policy, err := LoadPolicy(cfg.PolicyPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load security policy")
	}

	ctx := context.Background()

	// Setup storage
	var (
		users      storage.UserDirectory
		credStore  storage.CredentialStore
		challenges storage.ChallengeStore
	)
	switch cfg.StoreMode {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		users = storage.NewRedisUserDirectory(redisClient)
		credStore = storage.NewRedisCredentialStore(redisClient)
		challenges = storage.NewRedisChallengeStore(redisClient)
		log.WithField("addr", cfg.Redis.Addr).Info("Using Redis storage")
	case "memory":
		users = storage.NewMemoryUserDirectory()
		credStore = storage.NewMemoryCredentialStore()
		challenges = storage.NewMemoryChallengeStore()
		log.Warn("Using in-memory storage (not persistent, single instance only)")
	default:
		log.WithField("mode", cfg.StoreMode).Fatal("Invalid STORE_MODE")
	}

	if err := policy.Seed(ctx, users); err != nil {
		log.WithError(err).Fatal("Failed to seed user directory")
	}

	// Setup audit trail
	var recorder audit.Recorder = audit.Nop{}
	if cfg.Audit.Enabled {
		minioClient, err := minio.New(cfg.Audit.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Audit.AccessKey, cfg.Audit.SecretKey, ""),
			Secure: cfg.Audit.UseSSL,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to create audit storage client")
		}
		exists, err := minioClient.BucketExists(ctx, cfg.Audit.Bucket)
		if err != nil {
			log.WithError(err).Fatal("Failed to check audit bucket")
		}
		if !exists {
			if err := minioClient.MakeBucket(ctx, cfg.Audit.Bucket, minio.MakeBucketOptions{}); err != nil {
				log.WithError(err).Fatal("Failed to create audit bucket")
			}
		}
		recorder = audit.NewTrail(minioClient, cfg.Audit.Bucket)
		log.WithFields(logrus.Fields{
			"endpoint": cfg.Audit.Endpoint,
			"bucket":   cfg.Audit.Bucket,
		}).Info("Audit trail enabled")
	}

	// Setup WebAuthn verification
	verifier, err := biometric.NewVerifier(biometric.RelyingParty{
		ID:          cfg.RPID,
		DisplayName: cfg.RPDisplayName,
		Origins:     cfg.RPOrigins,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create WebAuthn verifier")
	}

	engine, err := biometric.NewService(biometric.Params{
		Verifier:        verifier,
		Users:           users,
		Credentials:     credStore,
		Challenges:      challenges,
		Audit:           recorder,
		Logger:          log,
		ChallengeTTL:    cfg.ChallengeTTL,
		PrivilegedRoles: policy.PrivilegedRoles,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create ceremony engine")
	}

	tokens, err := token.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		log.WithError(err).Fatal("Failed to create token service")
	}

	// Setup routes
	router := mux.NewRouter()
	controller := api.NewController(engine, tokens, log)
	controller.Routes(router)
	router.Use(api.RequestLogger(log))

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.RPOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.WithField("port", cfg.Port).Info("Biometric authentication service starting")
	if err := server.ListenAndServe(); err != nil {
		log.WithError(err).Error("Server failed")
		os.Exit(1)
	}
}
