package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/planner"
	"github.com/stitts-dev/caddie-engine/internal/player"
	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

// PlanHandler serves tee and approach shot plans.
type PlanHandler struct {
	planner    *planner.Planner
	courses    course.BundleProvider
	dispersion *player.DispersionStore
	logger     logrus.FieldLogger
}

func NewPlanHandler(p *planner.Planner, courses course.BundleProvider, dispersion *player.DispersionStore, logger logrus.FieldLogger) *PlanHandler {
	return &PlanHandler{
		planner:    p,
		courses:    courses,
		dispersion: dispersion,
		logger:     logger,
	}
}

// planRequest covers both tee and approach plans. Either an inline bundle
// or a courseId+hole pair must be present.
type planRequest struct {
	CourseID string         `json:"courseId"`
	Hole     int            `json:"hole"`
	Bundle   *course.Bundle `json:"bundle"`

	Tee  *geom.GeoPoint `json:"tee"`
	Ball *geom.GeoPoint `json:"ball"`
	Pin  *geom.GeoPoint `json:"pin"`

	Bag           map[player.ClubID]float64 `json:"bag"`
	RiskMode      planner.RiskMode          `json:"riskMode"`
	Wind          *planner.WindInput        `json:"wind"`
	SlopeDhM      float64                   `json:"slope_dh_m"`
	GoForGreen    bool                      `json:"goForGreen"`
	Par           int                       `json:"par"`
	PreferredClub player.ClubID             `json:"preferredClub"`
	Samples       int                       `json:"samples"`
	Seed          *uint32                   `json:"seed"`
	UseMC         *bool                     `json:"useMC"`
}

func (r *planRequest) wantsMC() bool {
	return r.UseMC == nil || *r.UseMC
}

func (h *PlanHandler) resolveBundle(c *gin.Context, req *planRequest) (*course.Bundle, bool) {
	if req.Bundle != nil {
		return req.Bundle, true
	}
	if req.CourseID == "" {
		utils.SendValidationError(c, "Bundle or courseId is required", "")
		return nil, false
	}
	if h.courses == nil {
		utils.SendValidationError(c, "No course provider configured; send an inline bundle", "")
		return nil, false
	}
	bundle, err := h.courses.Bundle(c.Request.Context(), req.CourseID, req.Hole)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"course_id": req.CourseID,
			"hole":      req.Hole,
			"error":     err.Error(),
		}).Warn("Failed to fetch course bundle")
		utils.SendUpstreamError(c, "Failed to fetch course bundle")
		return nil, false
	}
	return bundle, true
}

func (h *PlanHandler) buildPlayerModel(c *gin.Context, bag map[player.ClubID]float64) *player.Model {
	learned := h.dispersion.Load(c.Request.Context())
	return player.BuildModel(player.Bag(bag), learned, h.dispersion.MinSamples())
}

// PlanTee handles POST /plan/tee.
func (h *PlanHandler) PlanTee(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.Tee == nil || req.Pin == nil {
		utils.SendValidationError(c, "tee and pin coordinates are required", "")
		return
	}
	bundle, ok := h.resolveBundle(c, &req)
	if !ok {
		return
	}

	args := planner.TeePlanArgs{
		Bundle:     bundle,
		Tee:        *req.Tee,
		Pin:        *req.Pin,
		Player:     h.buildPlayerModel(c, req.Bag),
		RiskMode:   planner.NormalizeRiskMode(req.RiskMode),
		Wind:       req.Wind,
		SlopeDhM:   req.SlopeDhM,
		GoForGreen: req.GoForGreen,
		Par:        req.Par,
		MCSamples:  req.Samples,
		Seed:       req.Seed,
	}

	var plan planner.ShotPlan
	if req.wantsMC() {
		plan = h.planner.PlanTeeShotMC(args)
	} else {
		plan = h.planner.PlanTeeShot(args)
	}

	utils.SendSuccess(c, plan)
}

// PlanApproach handles POST /plan/approach.
func (h *PlanHandler) PlanApproach(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.Ball == nil || req.Pin == nil {
		utils.SendValidationError(c, "ball and pin coordinates are required", "")
		return
	}
	bundle, ok := h.resolveBundle(c, &req)
	if !ok {
		return
	}

	args := planner.ApproachPlanArgs{
		Bundle:        bundle,
		Ball:          *req.Ball,
		Pin:           *req.Pin,
		Player:        h.buildPlayerModel(c, req.Bag),
		RiskMode:      planner.NormalizeRiskMode(req.RiskMode),
		Wind:          req.Wind,
		SlopeDhM:      req.SlopeDhM,
		PreferredClub: req.PreferredClub,
		MCSamples:     req.Samples,
		Seed:          req.Seed,
	}

	var plan planner.ShotPlan
	if req.wantsMC() {
		plan = h.planner.PlanApproachMC(args)
	} else {
		plan = h.planner.PlanApproach(args)
	}

	utils.SendSuccess(c, plan)
}
