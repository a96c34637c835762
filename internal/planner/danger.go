package planner

import (
	"math"
	"regexp"
	"strings"

	"github.com/stitts-dev/caddie-engine/internal/mc"
)

// HazardLabel is a breakdown entry for danger-side inference: a hazard name
// with an optional hit rate.
type HazardLabel struct {
	Name string   `json:"name"`
	Rate *float64 `json:"rate,omitempty"`
}

// DangerSideInput feeds inferDangerSide. Reasons come from the simulator,
// breakdown labels from coarse hazard summaries.
type DangerSideInput struct {
	Reasons   []mc.Reason   `json:"reasons,omitempty"`
	Breakdown []HazardLabel `json:"breakdown,omitempty"`
	Rates     *HazardRates  `json:"rates,omitempty"`
}

// Severity of each hazard category when weighing directional mentions.
var sideWeights = map[string]float64{
	"ob":     4,
	"water":  3,
	"bunker": 2,
	"rough":  1,
}

var (
	leftRegex  = regexp.MustCompile(`(?i)(\b|[([\-_])(left|vänster|l)(\b|[)\]\-_])`)
	rightRegex = regexp.MustCompile(`(?i)(\b|[([\-_])(right|höger|r)(\b|[)\]\-_])`)

	hazardOBRegex     = regexp.MustCompile(`(?i)(\bob\b|out\s*of\s*bounds|boundary|cart\s*path|cartpath)`)
	hazardWaterRegex  = regexp.MustCompile(`(?i)(water|pond|lake|h2o|river|creek)`)
	hazardBunkerRegex = regexp.MustCompile(`(?i)(bunker|sand)`)
	hazardRoughRegex  = regexp.MustCompile(`(?i)(rough|native|brush|waste)`)
)

// Single-letter direction tokens are weaker evidence than full words.
const (
	wordPreference   = 1.0
	letterPreference = 0.5
)

func sanitizeRate(v float64) (float64, bool) {
	if !isFinite(v) || v < 0 {
		return 0, false
	}
	return v, true
}

func detectHazardKind(label string) string {
	switch {
	case hazardOBRegex.MatchString(label):
		return "ob"
	case hazardWaterRegex.MatchString(label):
		return "water"
	case hazardBunkerRegex.MatchString(label):
		return "bunker"
	case hazardRoughRegex.MatchString(label):
		return "rough"
	}
	return ""
}

func accumulateDirectionScores(left, right *float64, label string, weight float64) {
	base := math.Max(0, weight)
	if base <= 0 {
		return
	}
	for _, match := range leftRegex.FindAllStringSubmatch(label, -1) {
		token := strings.ToLower(match[2])
		preference := wordPreference
		if len(token) == 1 {
			preference = letterPreference
		}
		*left += base * preference
	}
	for _, match := range rightRegex.FindAllStringSubmatch(label, -1) {
		token := strings.ToLower(match[2])
		preference := wordPreference
		if len(token) == 1 {
			preference = letterPreference
		}
		*right += base * preference
	}
}

func labelWeight(label string, magnitude float64, hasMagnitude bool, kind string) float64 {
	if kind == "" {
		kind = detectHazardKind(label)
	}
	severity := 1.0
	if w, ok := sideWeights[kind]; ok {
		severity = w
	}
	scaled := 1.0
	if hasMagnitude && magnitude > 0 {
		scaled = magnitude
	}
	return severity * scaled
}

func rateForKind(rates *HazardRates, kind string) (float64, bool) {
	if rates == nil {
		return 0, false
	}
	switch kind {
	case "water":
		return sanitizeRate(rates.Water)
	case "bunker":
		return sanitizeRate(rates.Bunker)
	case "rough":
		return sanitizeRate(rates.Rough)
	case "ob":
		return sanitizeRate(rates.OB)
	}
	return 0, false
}

// InferDangerSide returns "left", "right", or "" when no side dominates.
// Simulator hazard reasons with an explicit direction win outright; otherwise
// directional mentions in the breakdown labels are scored by hazard severity
// and rate.
func InferDangerSide(input DangerSideInput) string {
	bestDirection := ""
	bestValue := math.Inf(-1)
	for _, reason := range input.Reasons {
		if reason.Kind != mc.ReasonHazard {
			continue
		}
		direction := strings.ToLower(strings.TrimSpace(reason.Direction))
		if direction != "left" && direction != "right" {
			continue
		}
		value, ok := sanitizeRate(reason.Value)
		if !ok {
			value = 0
		}
		if value > bestValue {
			bestValue = value
			bestDirection = direction
		}
	}
	if bestDirection != "" {
		return bestDirection
	}

	var left, right float64
	for _, raw := range input.Breakdown {
		label := strings.TrimSpace(raw.Name)
		if label == "" {
			continue
		}
		normalized := strings.ToLower(label)
		var magnitude float64
		hasMagnitude := false
		if raw.Rate != nil {
			magnitude, hasMagnitude = sanitizeRate(*raw.Rate)
		}
		kind := detectHazardKind(normalized)
		if kind != "" {
			if fromRates, ok := rateForKind(input.Rates, kind); ok {
				if hasMagnitude && magnitude > 0 && fromRates > 0 {
					magnitude *= fromRates
				} else if !hasMagnitude {
					magnitude = fromRates
					hasMagnitude = true
				}
			}
		}
		weight := labelWeight(normalized, magnitude, hasMagnitude, kind)
		accumulateDirectionScores(&left, &right, normalized, weight)
	}

	diff := left - right
	if math.Abs(diff) < 1e-6 {
		return ""
	}
	if diff > 0 {
		return "left"
	}
	return "right"
}
