package bootstrap

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/exteriorai/exteriorai-backend/config"
	"github.com/exteriorai/exteriorai-backend/internal/generation"
	"github.com/exteriorai/exteriorai-backend/internal/imagehost"
	"github.com/exteriorai/exteriorai-backend/internal/inflight"
	"github.com/exteriorai/exteriorai-backend/internal/objectstore"
	"github.com/exteriorai/exteriorai-backend/internal/pipeline"
	"github.com/exteriorai/exteriorai-backend/internal/transcription"
)

// NewUploader picks the object store from UPLOAD_DRIVER. A driver without
// credentials yields an uploader that fails each call, so the rest of the
// API keeps serving.
func NewUploader(cfg *config.Config, log zerolog.Logger) objectstore.Uploader {
	switch cfg.Upload.Driver {
	case config.UploadDriverMinIO:
		if cfg.MinIO.Endpoint == "" {
			log.Warn().Msg("MINIO_ENDPOINT not set; uploads disabled")
			return objectstore.Unconfigured{Driver: config.UploadDriverMinIO}
		}
		m, err := objectstore.NewMinIO(objectstore.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			PublicURL: cfg.MinIO.PublicURL,
			Region:    cfg.MinIO.Region,
		})
		if err != nil {
			log.Error().Err(err).Msg("minio init failed; uploads disabled")
			return objectstore.Unconfigured{Driver: config.UploadDriverMinIO}
		}
		return m
	default:
		if cfg.Cloudinary.CloudName == "" || cfg.Cloudinary.APIKey == "" || cfg.Cloudinary.APISecret == "" {
			log.Warn().Msg("cloudinary credentials not set; uploads disabled")
			return objectstore.Unconfigured{Driver: config.UploadDriverCloudinary}
		}
		c, err := objectstore.NewCloudinary(objectstore.CloudinaryConfig{
			CloudName:    cfg.Cloudinary.CloudName,
			APIKey:       cfg.Cloudinary.APIKey,
			APISecret:    cfg.Cloudinary.APISecret,
			UploadPrefix: cfg.Cloudinary.UploadPrefix,
		})
		if err != nil {
			log.Error().Err(err).Msg("cloudinary init failed; uploads disabled")
			return objectstore.Unconfigured{Driver: config.UploadDriverCloudinary}
		}
		return c
	}
}

func NewPipeline(cfg *config.Config) *pipeline.Pipeline {
	gen := generation.NewClient(generation.Config{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Model:   cfg.Gemini.Model,
	})
	host := imagehost.NewImgBB(imagehost.Config{
		APIKey:  cfg.ImgBB.APIKey,
		BaseURL: cfg.ImgBB.BaseURL,
	})
	return pipeline.New(gen, host)
}

func NewTranscriber(cfg *config.Config) *transcription.Client {
	return transcription.NewClient(transcription.Config{
		APIKey:  cfg.ElevenLabs.APIKey,
		BaseURL: cfg.ElevenLabs.BaseURL,
	})
}

// NewGuard shares in-flight leases through redis when a client is given,
// otherwise they only hold within this process.
func NewGuard(client *redis.Client, ttlSeconds int) inflight.Guard {
	if client == nil {
		return inflight.NewLocal()
	}
	return inflight.NewRedis(client, time.Duration(ttlSeconds)*time.Second)
}
