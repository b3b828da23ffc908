package http

import "github.com/exteriorai/exteriorai-backend/internal/projects/service"

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc *service.ProjectService
}

func New(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

type createReq struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	StylePreference *int   `json:"stylePreference"`
	ImageData       string `json:"imageData"`
}

type updateReq struct {
	Name            *string `json:"name"`
	Type            *string `json:"type"`
	StylePreference *int    `json:"stylePreference"`
	ImageData       *string `json:"imageData"`
}

type commandReq struct {
	Text string `json:"text"`
}

type generateReq struct {
	Prompt            string `json:"prompt"`
	ReferenceImageURL string `json:"referenceImageUrl"`
}

type attachReq struct {
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
}
