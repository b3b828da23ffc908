package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/exteriorai/exteriorai-backend/internal/auth"
	"github.com/exteriorai/exteriorai-backend/internal/generation"
	"github.com/exteriorai/exteriorai-backend/internal/inflight"
	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/objectstore"
	"github.com/exteriorai/exteriorai-backend/internal/projects/domain"
	"github.com/exteriorai/exteriorai-backend/internal/projects/service"
)

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserFirebaseUID(c)
	saved, err := h.svc.Create(c.Request.Context(), userID, service.CreateInput{
		Name:            req.Name,
		Type:            req.Type,
		StylePreference: req.StylePreference,
		ImageData:       req.ImageData,
	})
	if err != nil {
		writeError(c, "create_project", err)
		return
	}

	resp := gin.H{"ok": true, "project": saved.Project}
	if saved.Warning != "" {
		resp["warning"] = saved.Warning
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) list(c *gin.Context) {
	userID := auth.UserFirebaseUID(c)
	items, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, "list_projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	userID := auth.UserFirebaseUID(c)
	p, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, "get_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserFirebaseUID(c)
	p, err := h.svc.Update(c.Request.Context(), userID, c.Param("id"), service.UpdateInput{
		Name:            req.Name,
		Type:            req.Type,
		StylePreference: req.StylePreference,
		ImageData:       req.ImageData,
	})
	if err != nil {
		writeError(c, "update_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) delete(c *gin.Context) {
	userID := auth.UserFirebaseUID(c)
	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, "delete_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) command(c *gin.Context) {
	var req commandReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserFirebaseUID(c)
	p, err := h.svc.ProcessCommand(c.Request.Context(), userID, c.Param("id"), req.Text)
	if err != nil {
		writeError(c, "process_command", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserFirebaseUID(c)
	res, err := h.svc.Generate(c.Request.Context(), userID, c.Param("id"), req.Prompt, req.ReferenceImageURL)
	if err != nil {
		writeError(c, "generate_transformation", err)
		return
	}

	out := res.Outcome
	if out.Degraded {
		c.JSON(http.StatusOK, gin.H{
			"ok":                true,
			"imageUrl":          out.ImageURL,
			"fullImageTooLarge": out.FullImageTooLarge,
			"responseText":      out.Caption,
			"warning":           out.Warning,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"imageUrl":       out.ImageURL,
		"responseText":   out.Caption,
		"project":        res.Attached.Project,
		"transformation": res.Attached.Record,
	})
}

func (h *Handler) attach(c *gin.Context) {
	var req attachReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserFirebaseUID(c)
	res, err := h.svc.AttachTransformation(c.Request.Context(), userID, c.Param("id"), req.ImageURL, req.Prompt)
	if err != nil {
		writeError(c, "attach_transformation", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": res.Project, "transformation": res.Record})
}

func (h *Handler) transformations(c *gin.Context) {
	userID := auth.UserFirebaseUID(c)
	items, err := h.svc.Transformations(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, "list_transformations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "transformations": items})
}

func (h *Handler) share(c *gin.Context) {
	userID := auth.UserFirebaseUID(c)
	link, err := h.svc.ShareURL(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, "share_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "shareUrl": link})
}

func (h *Handler) activity(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "limit must be an integer"})
			return
		}
		limit = n
	}

	userID := auth.UserFirebaseUID(c)
	items, err := h.svc.Activity(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, "list_activity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "activity": items})
}

func writeError(c *gin.Context, operation string, err error) {
	status, msg := classify(err)
	resp := gin.H{"ok": false, "error": msg}

	var svcErr *generation.ServiceError
	if errors.As(err, &svcErr) {
		resp["details"] = svcErr.Body
	}
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).LogError(operation, err)
	}
	c.JSON(status, resp)
}

func classify(err error) (int, string) {
	var svcErr *generation.ServiceError
	switch {
	case errors.Is(err, domain.ErrOwnerRequired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "project not found"
	case errors.Is(err, inflight.ErrInFlight):
		return http.StatusConflict, "a generation is already running for this project"
	case errors.Is(err, objectstore.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, domain.ErrImageRequired),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidStyle),
		errors.Is(err, domain.ErrEmptyCommand),
		errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, domain.ErrInvalidImageURL),
		errors.Is(err, objectstore.ErrNoImageData),
		errors.Is(err, objectstore.ErrInvalidDataURI),
		errors.Is(err, objectstore.ErrNotAnImage),
		errors.Is(err, generation.ErrNoImageGenerated):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &svcErr):
		return svcErr.StatusCode, "Failed to generate image"
	case errors.Is(err, generation.ErrMalformedResponse):
		return http.StatusBadGateway, "Malformed response from generation service"
	case errors.Is(err, domain.ErrImageUpload):
		return http.StatusBadGateway, domain.ErrImageUpload.Error()
	case errors.Is(err, domain.ErrPartialWrite):
		return http.StatusInternalServerError, domain.ErrPartialWrite.Error()
	}
	return http.StatusInternalServerError, "internal error"
}
