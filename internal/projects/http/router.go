package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group. aiMiddleware
// runs only in front of the generate route.
func (h *Handler) Register(rg *gin.RouterGroup, aiMiddleware ...gin.HandlerFunc) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PATCH("/:id", h.update)
	rg.DELETE("/:id", h.delete)

	rg.POST("/:id/commands", h.command)
	rg.POST("/:id/generate", append(append(gin.HandlersChain{}, aiMiddleware...), h.generate)...)
	rg.POST("/:id/transformations", h.attach)
	rg.GET("/:id/transformations", h.transformations)
	rg.GET("/:id/share", h.share)
}

// RegisterActivity attaches the activity feed route.
func (h *Handler) RegisterActivity(rg *gin.RouterGroup) {
	rg.GET("", h.activity)
}
