package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/player"
	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

// DispersionHandler serves the learned per-club dispersion snapshot.
type DispersionHandler struct {
	store  *player.DispersionStore
	logger logrus.FieldLogger
}

func NewDispersionHandler(store *player.DispersionStore, logger logrus.FieldLogger) *DispersionHandler {
	return &DispersionHandler{store: store, logger: logger}
}

// Get handles GET /player/dispersion.
func (h *DispersionHandler) Get(c *gin.Context) {
	snapshot := h.store.Load(c.Request.Context())
	if snapshot == nil {
		snapshot = &player.DispersionSnapshot{Clubs: map[player.ClubID]player.ClubDispersion{}}
	}
	utils.SendSuccess(c, snapshot)
}

// Merge handles PUT /player/dispersion: variance-weighted merge of the
// incoming snapshot into the stored one.
func (h *DispersionHandler) Merge(c *gin.Context) {
	var incoming player.DispersionSnapshot
	if err := c.ShouldBindJSON(&incoming); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if len(incoming.Clubs) == 0 {
		utils.SendValidationError(c, "clubs must not be empty", "")
		return
	}
	merged := h.store.SaveMerged(c.Request.Context(), &incoming, time.Now().UTC())
	utils.SendSuccess(c, merged)
}

// Clear handles DELETE /player/dispersion.
func (h *DispersionHandler) Clear(c *gin.Context) {
	h.store.Clear(c.Request.Context())
	utils.SendSuccess(c, gin.H{"cleared": true})
}
