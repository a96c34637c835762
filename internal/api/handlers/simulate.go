package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/mc"
	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

// SimulateHandler serves the two Monte Carlo engines directly: the
// candidate-scoring engine for quick what-if checks and the aggregate
// engine for full hazard/target breakdowns.
type SimulateHandler struct {
	logger logrus.FieldLogger
}

func NewSimulateHandler(logger logrus.FieldLogger) *SimulateHandler {
	return &SimulateHandler{logger: logger}
}

type simFeatureRequest struct {
	Kind  string         `json:"kind"`
	Rings [][]geom.Point `json:"rings,omitempty"`
	Line  []geom.Point   `json:"line,omitempty"`
}

type simulateRequest struct {
	Samples      int                 `json:"samples"`
	Seed         *uint32             `json:"seed,omitempty"`
	WindCrossMps float64             `json:"windCross_mps"`
	WindHeadMps  float64             `json:"windHead_mps"`
	LongSigmaM   float64             `json:"longSigma_m"`
	LatSigmaM    float64             `json:"latSigma_m"`
	RangeM       float64             `json:"range_m"`
	AimDeg       float64             `json:"aim_deg"`
	Features     []simFeatureRequest `json:"features"`
}

// Simulate handles POST /simulate: the candidate-scoring Monte Carlo run.
func (h *SimulateHandler) Simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.RangeM <= 0 {
		utils.SendValidationError(c, "range_m must be positive", "")
		return
	}

	features := make([]mc.SimFeature, 0, len(req.Features))
	for _, f := range req.Features {
		features = append(features, mc.SimFeature{
			Kind:  mc.SimFeatureKind(f.Kind),
			Rings: f.Rings,
			Line:  f.Line,
		})
	}

	out := mc.RunSim(mc.SimOpts{
		Samples:      req.Samples,
		Seed:         req.Seed,
		WindCrossMps: req.WindCrossMps,
		WindHeadMps:  req.WindHeadMps,
		LongSigmaM:   req.LongSigmaM,
		LatSigmaM:    req.LatSigmaM,
		RangeM:       req.RangeM,
		AimDeg:       req.AimDeg,
		Features:     features,
	})

	utils.SendSuccess(c, out)
}

type aggregatePolygonRequest struct {
	ID      string         `json:"id,omitempty"`
	Label   string         `json:"label,omitempty"`
	Rings   [][]geom.Point `json:"rings"`
	Penalty *float64       `json:"penalty,omitempty"`
}

type aggregateTargetRequest struct {
	aggregatePolygonRequest
	Section  string   `json:"section,omitempty"`
	Priority *float64 `json:"priority,omitempty"`
}

type aggregateRequest struct {
	Samples       int                       `json:"samples"`
	Seed          *uint32                   `json:"seed,omitempty"`
	RangeM        float64                   `json:"range_m"`
	AimOffsetM    float64                   `json:"aimOffset_m"`
	SigmaLongM    float64                   `json:"sigmaLong_m"`
	SigmaLatM     float64                   `json:"sigmaLat_m"`
	WindCrossMps  float64                   `json:"windCross_mps"`
	WindHeadMps   float64                   `json:"windHead_mps"`
	Hazards       []aggregatePolygonRequest `json:"hazards,omitempty"`
	GreenTargets  []aggregateTargetRequest  `json:"greenTargets,omitempty"`
	Pin           *geom.Point               `json:"pin,omitempty"`
	HazardPenalty *float64                  `json:"hazardPenalty,omitempty"`
	SuccessWeight *float64                  `json:"successWeight,omitempty"`
	DistWeight    *float64                  `json:"distWeight,omitempty"`
}

// SimulateAggregate handles POST /simulate/aggregate: the full aggregate
// Monte Carlo engine with hazard breakdowns, EV, and reasons.
func (h *SimulateHandler) SimulateAggregate(c *gin.Context) {
	var req aggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.RangeM <= 0 {
		utils.SendValidationError(c, "range_m must be positive", "")
		return
	}

	hazards := make([]mc.Polygon, 0, len(req.Hazards))
	for _, hz := range req.Hazards {
		hazards = append(hazards, mc.Polygon{
			ID:      hz.ID,
			Label:   hz.Label,
			Rings:   hz.Rings,
			Penalty: hz.Penalty,
		})
	}

	targets := make([]mc.Target, 0, len(req.GreenTargets))
	for _, t := range req.GreenTargets {
		targets = append(targets, mc.Target{
			Polygon: mc.Polygon{
				ID:      t.ID,
				Label:   t.Label,
				Rings:   t.Rings,
				Penalty: t.Penalty,
			},
			Section:  t.Section,
			Priority: t.Priority,
		})
	}

	result := mc.Run(mc.Args{
		Samples:       req.Samples,
		Seed:          req.Seed,
		RangeM:        req.RangeM,
		AimOffsetM:    req.AimOffsetM,
		SigmaLongM:    req.SigmaLongM,
		SigmaLatM:     req.SigmaLatM,
		Wind:          mc.Wind{Cross: req.WindCrossMps, Head: req.WindHeadMps},
		Hazards:       hazards,
		GreenTargets:  targets,
		Pin:           req.Pin,
		HazardPenalty: req.HazardPenalty,
		SuccessWeight: req.SuccessWeight,
		DistWeight:    req.DistWeight,
	})

	utils.SendSuccess(c, result)
}
