package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/api/handlers"
	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/learning"
	"github.com/stitts-dev/caddie-engine/internal/planner"
	"github.com/stitts-dev/caddie-engine/internal/player"
	"github.com/stitts-dev/caddie-engine/internal/playslike"
	"github.com/stitts-dev/caddie-engine/internal/storage"
	"github.com/stitts-dev/caddie-engine/pkg/config"
)

// Dependencies carries the wired services handed to the route setup.
type Dependencies struct {
	Config          *config.Config
	Logger          *logrus.Logger
	Planner         *planner.Planner
	Courses         course.BundleProvider
	Store           storage.Store
	Dispersion      *player.DispersionStore
	Tuning          *playslike.TuningStore
	LearningStore   *learning.Store
	Telemetry       *learning.TelemetryStore
	LearningService *learning.Service
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps Dependencies) {
	planHandler := handlers.NewPlanHandler(deps.Planner, deps.Courses, deps.Dispersion, deps.Logger)
	simulateHandler := handlers.NewSimulateHandler(deps.Logger)
	playsLikeHandler := handlers.NewPlaysLikeHandler(deps.Tuning, deps.Config.TuningLambda, deps.Logger)
	learningHandler := handlers.NewLearningHandler(deps.Telemetry, deps.LearningStore, deps.LearningService, deps.Logger)
	strategyHandler := handlers.NewStrategyHandler(deps.LearningStore, deps.Logger)
	dispersionHandler := handlers.NewDispersionHandler(deps.Dispersion, deps.Logger)

	// Shot planning
	group.POST("/plan/tee", planHandler.PlanTee)
	group.POST("/plan/approach", planHandler.PlanApproach)

	// Direct simulation
	group.POST("/simulate", simulateHandler.Simulate)
	group.POST("/simulate/aggregate", simulateHandler.SimulateAggregate)

	// Plays-like corrections and personalization
	group.POST("/playslike/delta", playsLikeHandler.Delta)
	group.POST("/playslike/learn", playsLikeHandler.Learn)
	group.GET("/playslike/coeffs", playsLikeHandler.Coeffs)
	group.DELETE("/playslike/coeffs", playsLikeHandler.ClearCoeffs)

	// Lane strategy
	group.POST("/strategy/lane", strategyHandler.Lane)
	group.POST("/strategy/danger-side", strategyHandler.DangerSide)

	// Learned dispersion
	group.GET("/player/dispersion", dispersionHandler.Get)
	group.PUT("/player/dispersion", dispersionHandler.Merge)
	group.DELETE("/player/dispersion", dispersionHandler.Clear)

	// Telemetry intake and suggestion folds
	group.POST("/telemetry/accepts", learningHandler.RecordAccept)
	group.POST("/telemetry/outcomes", learningHandler.RecordOutcome)
	group.GET("/learning/suggestions", learningHandler.Suggestions)
	group.POST("/learning/fold", learningHandler.Fold)
}
