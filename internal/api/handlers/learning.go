package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/learning"
	"github.com/stitts-dev/caddie-engine/internal/planner"
	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

// LearningHandler serves telemetry intake, suggestion reads, and
// on-demand folds.
type LearningHandler struct {
	telemetry *learning.TelemetryStore
	store     *learning.Store
	service   *learning.Service
	logger    logrus.FieldLogger
}

func NewLearningHandler(telemetry *learning.TelemetryStore, store *learning.Store, service *learning.Service, logger logrus.FieldLogger) *LearningHandler {
	return &LearningHandler{
		telemetry: telemetry,
		store:     store,
		service:   service,
		logger:    logger,
	}
}

// RecordAccept handles POST /telemetry/accepts.
func (h *LearningHandler) RecordAccept(c *gin.Context) {
	var sample learning.AcceptSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if sample.ClubID == "" {
		utils.SendValidationError(c, "clubId is required", "")
		return
	}
	if sample.Presented <= 0 {
		utils.SendValidationError(c, "presented must be positive", "")
		return
	}
	if err := h.telemetry.RecordAccept(sample); err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to record accept sample")
		utils.SendInternalError(c, "Failed to record sample")
		return
	}
	utils.SendSuccess(c, gin.H{"recorded": true})
}

// RecordOutcome handles POST /telemetry/outcomes.
func (h *LearningHandler) RecordOutcome(c *gin.Context) {
	var sample learning.OutcomeSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if sample.ClubID == "" {
		utils.SendValidationError(c, "clubId is required", "")
		return
	}
	if sample.TP+sample.FN <= 0 {
		utils.SendValidationError(c, "tp+fn must be positive", "")
		return
	}
	if err := h.telemetry.RecordOutcome(sample); err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to record outcome sample")
		utils.SendInternalError(c, "Failed to record sample")
		return
	}
	utils.SendSuccess(c, gin.H{"recorded": true})
}

// Suggestions handles GET /learning/suggestions. With profile and club
// query parameters set, a single suggestion is returned; otherwise the
// whole map.
func (h *LearningHandler) Suggestions(c *gin.Context) {
	profile := c.Query("profile")
	clubID := c.Query("club")

	if profile != "" && clubID != "" {
		suggestion, found := h.store.SuggestionFor(c.Request.Context(), planner.RiskProfile(profile), clubID)
		if !found {
			utils.SendNotFound(c, "No suggestion for that profile and club")
			return
		}
		utils.SendSuccess(c, suggestion)
		return
	}

	state := h.store.GetState(c.Request.Context())
	utils.SendSuccess(c, state.Suggestions)
}

// Fold handles POST /learning/fold: fold all pending telemetry into
// suggestions immediately instead of waiting for the schedule.
func (h *LearningHandler) Fold(c *gin.Context) {
	suggestions, err := h.service.FoldNow(c.Request.Context())
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Fold failed")
		utils.SendInternalError(c, "Fold failed")
		return
	}
	utils.SendSuccess(c, suggestions)
}
