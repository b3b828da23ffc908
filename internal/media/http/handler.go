// Package http serves the stateless media routes: image generation,
// transcription and image upload. Their JSON shapes are consumed directly
// by the web client.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/exteriorai/exteriorai-backend/internal/generation"
	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/objectstore"
	"github.com/exteriorai/exteriorai-backend/internal/pipeline"
	"github.com/exteriorai/exteriorai-backend/internal/transcription"
)

const (
	// MaxAudioBytes bounds one recording.
	MaxAudioBytes = 25 << 20

	DefaultUploadFolder = "projects"
)

type Runner interface {
	Run(ctx context.Context, prompt, originalImageURL string) (*pipeline.Outcome, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (*transcription.Result, error)
}

type Handler struct {
	runner      Runner
	transcriber Transcriber
	uploader    objectstore.Uploader
}

func New(runner Runner, transcriber Transcriber, uploader objectstore.Uploader) *Handler {
	return &Handler{runner: runner, transcriber: transcriber, uploader: uploader}
}

// Register attaches the media routes. Each route takes its own middleware
// chain so the AI routes can be rate limited separately.
func (h *Handler) Register(rg *gin.RouterGroup, aiMiddleware ...gin.HandlerFunc) {
	rg.POST("/generate-image", chain(aiMiddleware, h.generateImage)...)
	rg.POST("/transcribe", chain(aiMiddleware, h.transcribe)...)
	rg.POST("/upload", h.upload)
}

func chain(mw []gin.HandlerFunc, final gin.HandlerFunc) gin.HandlersChain {
	out := make(gin.HandlersChain, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, final)
}

type generateImageReq struct {
	Prompt           string `json:"prompt"`
	OriginalImageURL string `json:"originalImageUrl"`
}

func (h *Handler) generateImage(c *gin.Context) {
	var req generateImageReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No prompt provided"})
		return
	}

	ctx := c.Request.Context()
	out, err := h.runner.Run(ctx, req.Prompt, req.OriginalImageURL)
	if err != nil {
		h.generateError(c, err)
		return
	}

	if out.Degraded {
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"imageUrl":          out.ImageURL,
			"fullImageTooLarge": out.FullImageTooLarge,
			"responseText":      out.Caption,
			"error":             out.Warning,
		})
		return
	}

	resp := gin.H{
		"success":      true,
		"imageUrl":     out.ImageURL,
		"responseText": out.Caption,
	}
	if out.DisplayURL != "" {
		resp["displayUrl"] = out.DisplayURL
	}
	if out.DeleteURL != "" {
		resp["deleteUrl"] = out.DeleteURL
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) generateError(c *gin.Context, err error) {
	log := logging.FromContext(c.Request.Context())

	var svcErr *generation.ServiceError
	switch {
	case errors.Is(err, generation.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No prompt provided"})
	case errors.Is(err, generation.ErrNoImageGenerated):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image was generated"})
	case errors.As(err, &svcErr):
		log.LogErrorf("generate_image", "generation service returned %d", svcErr.StatusCode)
		c.JSON(svcErr.StatusCode, gin.H{"error": "Failed to generate image", "details": svcErr.Body})
	case errors.Is(err, generation.ErrMalformedResponse):
		log.LogError("generate_image", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Malformed response from generation service"})
	default:
		log.LogError("generate_image", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process image generation request"})
	}
}

func (h *Handler) transcribe(c *gin.Context) {
	fh, err := c.FormFile("audio")
	if err != nil || fh.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}

	log := logging.FromContext(c.Request.Context())

	f, err := fh.Open()
	if err != nil {
		log.LogError("transcribe", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process transcription request", "details": err.Error()})
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, MaxAudioBytes+1))
	if err != nil {
		log.LogError("transcribe", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process transcription request", "details": err.Error()})
		return
	}
	if len(audio) > MaxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Audio file is too large"})
		return
	}

	res, err := h.transcriber.Transcribe(c.Request.Context(), audio, fh.Header.Get("Content-Type"))
	if err != nil {
		var svcErr *transcription.ServiceError
		switch {
		case errors.Is(err, transcription.ErrNoAudio):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		case errors.As(err, &svcErr):
			log.LogErrorf("transcribe", "transcription service returned %d", svcErr.StatusCode)
			c.JSON(svcErr.StatusCode, gin.H{"error": "Failed to transcribe audio", "details": svcErr.Details})
		default:
			log.LogError("transcribe", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process transcription request", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transcript": res.Text})
}

type uploadReq struct {
	ImageData string `json:"imageData"`
	Folder    string `json:"folder"`
}

func (h *Handler) upload(c *gin.Context) {
	var req uploadReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ImageData) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided"})
		return
	}
	folder := req.Folder
	if strings.TrimSpace(folder) == "" {
		folder = DefaultUploadFolder
	}

	res, err := h.uploader.Upload(c.Request.Context(), req.ImageData, folder)
	if err != nil {
		switch {
		case errors.Is(err, objectstore.ErrNoImageData):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided"})
		case errors.Is(err, objectstore.ErrInvalidDataURI), errors.Is(err, objectstore.ErrNotAnImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, objectstore.ErrImageTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		default:
			logging.FromContext(c.Request.Context()).LogError("upload_image", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "url": res.URL, "public_id": res.PublicID})
}
