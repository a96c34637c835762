package playslike

import (
	"math"
	"time"
)

const (
	// DefaultLambda is the L2 regularization strength for the coefficient
	// fit.
	DefaultLambda = 0.1

	// maxFullWeightSamples is the shot count at which personalized
	// coefficients fully replace the defaults.
	maxFullWeightSamples = 100

	featureDim = 4
)

// ShotObservation is one historical shot used for coefficient fitting.
// Optional fields use pointers; nil means unobserved.
type ShotObservation struct {
	BaseDistanceM   float64  `json:"baseDistance_m"`
	ActualCarryM    float64  `json:"actual_carry_m"`
	PlaysLikeBaseM  *float64 `json:"playsLike_base_m,omitempty"`
	TemperatureC    *float64 `json:"temperatureC,omitempty"`
	AltitudeM       *float64 `json:"altitude_m,omitempty"`
	WindMps         *float64 `json:"wind_mps,omitempty"`
	WindFromDeg     *float64 `json:"wind_from_deg,omitempty"`
	TargetAzimuthDeg *float64 `json:"target_azimuth_deg,omitempty"`
	SlopeDhM        *float64 `json:"slope_dh_m,omitempty"`
}

// TuningSnapshot is a personalized coefficient fit with its provenance.
type TuningSnapshot struct {
	PersonalCoefficients
	Samples   int       `json:"samples"`
	Alpha     float64   `json:"alpha"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func floatOr(ptr *float64, fallback float64) float64 {
	if ptr == nil || !isFinite(*ptr) {
		return fallback
	}
	return *ptr
}

func angleOr(ptr *float64) (float64, bool) {
	if ptr == nil || !isFinite(*ptr) {
		return 0, false
	}
	normalized := math.Mod(*ptr, 360)
	if !isFinite(normalized) {
		return 0, false
	}
	return normalized, true
}

// featureRow builds the regression features for one shot plus the baseline
// plays-like prediction. Returns false when the shot carries no signal.
func featureRow(shot ShotObservation) (features [featureDim]float64, base float64, ok bool) {
	baseDistance := shot.BaseDistanceM
	if !isFinite(baseDistance) || baseDistance <= 0 {
		return features, 0, false
	}
	temperatureC := floatOr(shot.TemperatureC, refTempC)
	altitudeM := floatOr(shot.AltitudeM, 0)
	windSpeed := math.Max(0, floatOr(shot.WindMps, 0))
	windDirection, hasWindDirection := angleOr(shot.WindFromDeg)
	targetAzimuth, hasAzimuth := angleOr(shot.TargetAzimuthDeg)
	if !hasAzimuth {
		targetAzimuth = 0
	}
	slopeDh := floatOr(shot.SlopeDhM, 0)

	features[0] = baseDistance * (refTempC - temperatureC)
	features[1] = baseDistance * (altitudeM / 100)
	if windSpeed > 0 && hasWindDirection {
		thetaRad := (windDirection - targetAzimuth) * math.Pi / 180
		features[2] = -baseDistance * windSpeed * math.Cos(thetaRad)
	}
	features[3] = -slopeDh

	hasSignal := false
	for _, value := range features {
		if math.Abs(value) > epsilon {
			hasSignal = true
			break
		}
	}
	if !hasSignal {
		return features, 0, false
	}

	if shot.PlaysLikeBaseM != nil && isFinite(*shot.PlaysLikeBaseM) {
		base = *shot.PlaysLikeBaseM
	} else {
		base = baseDistance +
			DefaultBetaPerC*features[0] +
			DefaultGammaPer100m*features[1] +
			DefaultHeadPerMps*features[2] +
			DefaultSlopePerM*features[3]
	}
	return features, base, true
}

// ridgeRegression solves (XtX + lambda*I) delta = Xty by Gauss-Jordan
// elimination with partial pivoting. Near-singular pivots are skipped and
// contribute a zero coefficient instead of failing.
func ridgeRegression(features [][featureDim]float64, targets []float64, lambda float64) [featureDim]float64 {
	var xtx [featureDim][featureDim]float64
	var xty [featureDim]float64
	for rowIdx, row := range features {
		target := targets[rowIdx]
		for i := 0; i < featureDim; i++ {
			xty[i] += row[i] * target
			for j := 0; j < featureDim; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < featureDim; i++ {
		xtx[i][i] += lambda
	}

	var augmented [featureDim][featureDim + 1]float64
	for i := 0; i < featureDim; i++ {
		for j := 0; j < featureDim; j++ {
			augmented[i][j] = xtx[i][j]
		}
		augmented[i][featureDim] = xty[i]
	}

	for col := 0; col < featureDim; col++ {
		pivot := col
		maxAbs := math.Abs(augmented[col][col])
		for row := col + 1; row < featureDim; row++ {
			if candidate := math.Abs(augmented[row][col]); candidate > maxAbs {
				maxAbs = candidate
				pivot = row
			}
		}
		if maxAbs < epsilon {
			continue
		}
		if pivot != col {
			augmented[col], augmented[pivot] = augmented[pivot], augmented[col]
		}
		pivotValue := augmented[col][col]
		if math.Abs(pivotValue) < epsilon {
			continue
		}
		for j := col; j <= featureDim; j++ {
			augmented[col][j] /= pivotValue
		}
		for row := 0; row < featureDim; row++ {
			if row == col {
				continue
			}
			factor := augmented[row][col]
			if math.Abs(factor) < epsilon {
				continue
			}
			for j := col; j <= featureDim; j++ {
				augmented[row][j] -= factor * augmented[col][j]
			}
		}
	}

	var solution [featureDim]float64
	for i := 0; i < featureDim; i++ {
		if value := augmented[i][featureDim]; isFinite(value) {
			solution[i] = value
		}
	}
	return solution
}

// BlendCoefficients linearly interpolates from base toward target by alpha
// clamped to [0,1].
func BlendCoefficients(base, target PersonalCoefficients, alpha float64) PersonalCoefficients {
	weight := math.Min(1, math.Max(0, alpha))
	complement := 1 - weight
	return PersonalCoefficients{
		BetaPerC:     complement*base.BetaPerC + weight*target.BetaPerC,
		GammaPer100m: complement*base.GammaPer100m + weight*target.GammaPer100m,
		HeadPerMps:   complement*base.HeadPerMps + weight*target.HeadPerMps,
		SlopePerM:    complement*base.SlopePerM + weight*target.SlopePerM,
	}
}

// LearnPersonalCoefficients fits coefficient deltas over the usable shots by
// ridge regression, then shrinks the fit toward the defaults by
// alpha = min(1, n/100). Returns nil when no shot carries usable signal.
func LearnPersonalCoefficients(shots []ShotObservation, lambda float64, now time.Time) *TuningSnapshot {
	if lambda <= 0 || !isFinite(lambda) {
		lambda = DefaultLambda
	}
	var featureRows [][featureDim]float64
	var targets []float64
	for _, shot := range shots {
		features, base, ok := featureRow(shot)
		if !ok {
			continue
		}
		if !isFinite(shot.ActualCarryM) {
			continue
		}
		err := shot.ActualCarryM - base
		if !isFinite(err) {
			continue
		}
		featureRows = append(featureRows, features)
		targets = append(targets, err)
	}
	n := len(featureRows)
	if n == 0 {
		return nil
	}

	deltas := ridgeRegression(featureRows, targets, lambda)
	defaults := DefaultCoefficients()
	candidate := PersonalCoefficients{
		BetaPerC:     defaults.BetaPerC + deltas[0],
		GammaPer100m: defaults.GammaPer100m + deltas[1],
		HeadPerMps:   defaults.HeadPerMps + deltas[2],
		SlopePerM:    defaults.SlopePerM + deltas[3],
	}
	alpha := math.Min(1, float64(n)/maxFullWeightSamples)
	return &TuningSnapshot{
		PersonalCoefficients: BlendCoefficients(defaults, candidate, alpha),
		Samples:              n,
		Alpha:                alpha,
		UpdatedAt:            now,
	}
}
