package app

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	clipeditor "media-studio-server/modules/clip-editor"
	"media-studio-server/modules/common/config"
	"media-studio-server/modules/common/genaiclient"
	"media-studio-server/modules/common/media"
	"media-studio-server/modules/common/provider"
	redisClient "media-studio-server/modules/common/redis"
	"media-studio-server/modules/common/storage"
	generateimage "media-studio-server/modules/generate-image"
	"media-studio-server/modules/intent"
	"media-studio-server/modules/veo3"
)

// App - every service wired against one configuration
type App struct {
	Config     *config.Config
	Store      *storage.Store
	Gateway    *provider.Gateway
	Classifier *intent.Classifier
	Images     *generateimage.Service
	Videos     *veo3.Service
	Editor     *clipeditor.Service

	// Redis and Jobs are nil when Redis is not configured.
	Redis *redis.Client
	Jobs  veo3.JobQueue
}

// Options - optional parts of the wiring
type Options struct {
	// ConnectRedis enables the async video queue when REDIS_HOST is set.
	ConnectRedis bool
}

// New - build the store, providers and services
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	store := storage.NewStore(cfg)
	if err := store.EnsureDirs(); err != nil {
		return nil, err
	}
	if cfg.MirrorEnabled() {
		mirror, err := storage.NewMirror(cfg)
		if err != nil {
			log.Printf("⚠️  [Mirror] Disabled: %v", err)
		} else {
			store.WithReplica(mirror)
		}
	}

	engine, err := media.NewFFmpeg(cfg)
	if err != nil {
		return nil, fmt.Errorf("media engine: %w", err)
	}

	gateway := provider.NewGateway()
	classifier := intent.NewClassifier(gateway, cfg.ClassifierModel, cfg.ClassifierProvider)
	genaiSource := genaiclient.NewLazy(cfg)

	a := &App{
		Config:     cfg,
		Store:      store,
		Gateway:    gateway,
		Classifier: classifier,
		Images:     generateimage.NewService(generateimage.NewGeminiImageBackend(genaiSource, cfg.ImageModel), classifier, store),
		Videos:     veo3.NewService(veo3.NewGeminiVideoBackend(genaiSource, cfg.VideoModel), store, veo3.LoadConfig(cfg)),
		Editor:     clipeditor.NewService(engine, store),
	}

	if opts.ConnectRedis {
		if rdb := redisClient.Connect(cfg); rdb != nil {
			a.Redis = rdb
			a.Jobs = veo3.NewRedisJobQueue(rdb)
		}
	}
	return a, nil
}

// Close - release external connections
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("⚠️  [Redis] Close failed: %v", err)
		}
	}
}
