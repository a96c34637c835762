package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/learning"
	"github.com/stitts-dev/caddie-engine/internal/planner"
	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

// StrategyHandler serves the lane-selection scorer and danger-side
// inference.
type StrategyHandler struct {
	learning *learning.Store
	logger   logrus.FieldLogger
}

func NewStrategyHandler(learningStore *learning.Store, logger logrus.FieldLogger) *StrategyHandler {
	return &StrategyHandler{learning: learningStore, logger: logger}
}

type laneRequest struct {
	planner.StrategyInput
	ClubID string `json:"clubId,omitempty"`
}

// Lane handles POST /strategy/lane. When a clubId is present and a learned
// suggestion exists for the profile+club, its weight deltas are applied
// before scoring.
func (h *StrategyHandler) Lane(c *gin.Context) {
	var req laneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.RawDistM <= 0 {
		utils.SendValidationError(c, "rawDist_m must be positive", "")
		return
	}

	profile := planner.NormalizeRiskProfile(req.Profile)
	weights := planner.StrategyDefaults[profile]
	if req.ClubID != "" && h.learning != nil {
		if suggestion, found := h.learning.SuggestionFor(c.Request.Context(), profile, req.ClubID); found {
			weights = learning.ApplyToWeights(weights, suggestion)
		}
	}

	decision := planner.ChooseStrategyWeighted(req.StrategyInput, weights)
	utils.SendSuccess(c, decision)
}

// DangerSide handles POST /strategy/danger-side.
func (h *StrategyHandler) DangerSide(c *gin.Context) {
	var input planner.DangerSideInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	utils.SendSuccess(c, gin.H{"side": planner.InferDangerSide(input)})
}
