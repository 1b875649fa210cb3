package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"barnlabs/api/internal/config"
	"barnlabs/api/internal/middleware"
	"barnlabs/api/internal/models"
	"barnlabs/api/internal/notify"
	"barnlabs/api/internal/repository"
	"barnlabs/api/internal/security"
	"barnlabs/api/internal/service"
	"barnlabs/api/internal/storage"
)

// objectReader is the slice of the object store the proxy route streams from.
type objectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectStat, error)
}

type assetGateway interface {
	GetByKey(ctx context.Context, key string) (models.Asset, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Asset, error)
	List(ctx context.Context, limit, offset int) ([]models.Asset, error)
}

type shareGateway interface {
	Create(ctx context.Context, share models.Share) error
	GetByID(ctx context.Context, id string) (models.Share, error)
	Delete(ctx context.Context, id string, ownerID string) error
}

type userGateway interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	secrets  []string
	uploader *service.Uploader
	access   *service.AccessResolver
	quota    *service.QuotaEnforcer
	assets   assetGateway
	shares   shareGateway
	users    userGateway
	store    objectReader
	db       *pgxpool.Pool
	cache    *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	assetRepo := repository.NewAssetRepository(db)
	shareRepo := repository.NewShareRepository(db)
	userRepo := repository.NewUserRepository(db)

	secrets := security.CandidateSecrets(cfg.Security.TokenSecret, cfg.Security.TokenSecretNext)

	notifier := notify.New(cache, log)
	linker := service.NewCompanionLinker(assetRepo, notifier, log)
	quota := service.NewQuotaEnforcer(assetRepo, userRepo, cfg.Upload.DefaultMaxModels)
	uploader := service.NewUploader(store, assetRepo, quota, linker, notifier, log)
	access := service.NewAccessResolver(shareRepo, userRepo, secrets)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		secrets:  secrets,
		uploader: uploader,
		access:   access,
		quota:    quota,
		assets:   assetRepo,
		shares:   shareRepo,
		users:    userRepo,
		store:    store,
		db:       db,
		cache:    cache,
	}
}

// Register mounts the API. The proxy and share-resolve routes are public
// and rate-limited at the stricter ceiling; everything else requires a
// bearer credential. User and admin MPU variants share handlers.
func (h HandlerSet) Register(engine *gin.Engine, publicLimit, authedLimit gin.HandlerFunc) {
	auth := middleware.Auth(h.secrets, h.users)

	api := engine.Group("/api")
	api.GET("/healthz", h.Health)

	v1 := api.Group("/v1")

	mpu := v1.Group("/mpu", authedLimit, auth)
	mpu.POST("/create", h.CreateUpload)
	mpu.PUT("/uploadpart", h.UploadPart)
	mpu.POST("/complete", h.CompleteUpload)
	mpu.DELETE("/abort", h.AbortUpload)

	assets := v1.Group("/assets", authedLimit, auth)
	assets.GET("", h.ListAssets)
	assets.GET("/quota", h.QuotaStatus)

	v1.GET("/asset/*key", publicLimit, h.ProxyAsset)
	v1.DELETE("/asset/*key", authedLimit, auth, h.DeleteAsset)

	shares := v1.Group("/shares", authedLimit, auth)
	shares.POST("", h.CreateShare)
	shares.DELETE("/:id", h.DeleteShare)

	admin := v1.Group("/admin", authedLimit, auth, middleware.RequireAdmin())
	admin.POST("/mpu/create", h.AdminCreateUpload)
	admin.PUT("/mpu/uploadpart", h.UploadPart)
	admin.POST("/mpu/complete", h.AdminCompleteUpload)
	admin.DELETE("/mpu/abort", h.AbortUpload)
	admin.GET("/assets", h.AdminListAssets)

	engine.GET("/s/:id", publicLimit, h.ResolveShare)
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get(middleware.ContextUser)
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
