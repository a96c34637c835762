package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/playslike"
	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

// PlaysLikeHandler serves wind/slope distance corrections and the
// personalized coefficient fit behind them.
type PlaysLikeHandler struct {
	tuning *playslike.TuningStore
	lambda float64
	logger logrus.FieldLogger
}

func NewPlaysLikeHandler(tuning *playslike.TuningStore, lambda float64, logger logrus.FieldLogger) *PlaysLikeHandler {
	if lambda <= 0 {
		lambda = playslike.DefaultLambda
	}
	return &PlaysLikeHandler{tuning: tuning, lambda: lambda, logger: logger}
}

type deltaRequest struct {
	BaseDistanceM float64                      `json:"baseDistance_m"`
	Wind          *playslike.WindObservation   `json:"wind,omitempty"`
	Slope         *playslike.SlopeObservation  `json:"slope,omitempty"`
	Enable        *bool                        `json:"enable,omitempty"`
	Coeff         *playslike.WindSlopeCoeff    `json:"coeff,omitempty"`
	UsePersonal   bool                         `json:"usePersonal"`
}

// Delta handles POST /playslike/delta. With usePersonal set, the stored
// personalized coefficients (shrunk toward the defaults by their alpha)
// replace the default head/slope coefficients; explicit coeff overrides
// still win.
func (h *PlaysLikeHandler) Delta(c *gin.Context) {
	var req deltaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.BaseDistanceM <= 0 {
		utils.SendValidationError(c, "baseDistance_m must be positive", "")
		return
	}

	coeff := req.Coeff
	if req.UsePersonal {
		if snapshot := h.tuning.Load(c.Request.Context()); snapshot != nil {
			blended := playslike.BlendCoefficients(playslike.DefaultCoefficients(), snapshot.PersonalCoefficients, snapshot.Alpha)
			merged := playslike.WindSlopeCoeff{
				HeadPerMps: &blended.HeadPerMps,
				SlopePerM:  &blended.SlopePerM,
			}
			if coeff != nil {
				if coeff.HeadPerMps != nil {
					merged.HeadPerMps = coeff.HeadPerMps
				}
				if coeff.SlopePerM != nil {
					merged.SlopePerM = coeff.SlopePerM
				}
				merged.CrossAimDegPerMps = coeff.CrossAimDegPerMps
				merged.CapPerComponent = coeff.CapPerComponent
				merged.CapTotal = coeff.CapTotal
			}
			coeff = &merged
		}
	}

	enable := req.Enable == nil || *req.Enable
	delta := playslike.ComputeWindSlopeDelta(playslike.WindSlopeInput{
		BaseDistanceM: req.BaseDistanceM,
		Wind:          req.Wind,
		Slope:         req.Slope,
		Enable:        enable,
		Coeff:         coeff,
	})

	utils.SendSuccess(c, delta)
}

type learnRequest struct {
	Shots  []playslike.ShotObservation `json:"shots"`
	Lambda *float64                    `json:"lambda,omitempty"`
}

// Learn handles POST /playslike/learn: fit personalized coefficients from
// shot history and persist the snapshot.
func (h *PlaysLikeHandler) Learn(c *gin.Context) {
	var req learnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if len(req.Shots) == 0 {
		utils.SendValidationError(c, "shots must not be empty", "")
		return
	}

	lambda := h.lambda
	if req.Lambda != nil && *req.Lambda > 0 {
		lambda = *req.Lambda
	}

	snapshot := h.tuning.Learn(c.Request.Context(), req.Shots, lambda)
	if snapshot == nil {
		utils.SendValidationError(c, "No usable shots for fitting", "every shot lacked carry data or environmental signal")
		return
	}

	utils.SendSuccess(c, snapshot)
}

type coeffsResponse struct {
	Defaults  playslike.PersonalCoefficients `json:"defaults"`
	Personal  *playslike.TuningSnapshot      `json:"personal,omitempty"`
	Effective playslike.PersonalCoefficients `json:"effective"`
}

// Coeffs handles GET /playslike/coeffs.
func (h *PlaysLikeHandler) Coeffs(c *gin.Context) {
	defaults := playslike.DefaultCoefficients()
	resp := coeffsResponse{Defaults: defaults, Effective: defaults}
	if snapshot := h.tuning.Load(c.Request.Context()); snapshot != nil {
		resp.Personal = snapshot
		resp.Effective = playslike.BlendCoefficients(defaults, snapshot.PersonalCoefficients, snapshot.Alpha)
	}
	utils.SendSuccess(c, resp)
}

// ClearCoeffs handles DELETE /playslike/coeffs.
func (h *PlaysLikeHandler) ClearCoeffs(c *gin.Context) {
	h.tuning.Clear(c.Request.Context())
	utils.SendSuccess(c, gin.H{"cleared": true})
}
