package forensic

import "math"

// Verdict and quadrant labels assigned during enforcement.
const (
	OverreactionExtreme  = "EXTREME"
	OverreactionElevated = "ELEVATED"
	OverreactionNormal   = "NORMAL"

	CoordinationHigh     = "HIGH"
	CoordinationModerate = "MODERATE"
	CoordinationLow      = "LOW"

	QuadrantValidCatalyst = "VALID_CATALYST"
	QuadrantFactualAnchor = "FACTUAL_ANCHOR"
	QuadrantNarrativeTrap = "NARRATIVE_TRAP"
	QuadrantMarketNoise   = "MARKET_NOISE"
)

// Enforcement bounds and defaults.
const (
	vmsTableWeight = 0.65
	vmsTextWeight  = 0.35

	halfLifeMinDays     = 1.0
	halfLifeMaxDays     = 180.0
	halfLifeDefaultDays = 14.0

	defaultConfidence = 50.0

	// Ratio assigned when price moved on zero fundamental change.
	overreactionCeiling = 10.0
)

// Enforce recomputes and clamps the derived scores in a raw provider result,
// in place, and returns the same map. Models routinely return arithmetic that
// does not match their own component numbers, so every score, ratio, verdict
// and percentage is re-derived here from published formulas; the model's own
// values for those fields are discarded.
//
// Enforce is total: missing or malformed sub-structures cause the matching
// rule to be skipped (or a default to be written), never an error. Running it
// on its own output is a no-op.
func Enforce(raw map[string]interface{}) map[string]interface{} {
	if raw == nil {
		raw = map[string]interface{}{}
	}

	enforceVMS(subMap(raw, "vms"))
	enforceOverreaction(subMap(raw, "overreaction"))
	enforceHalfLife(raw)
	enforceCoordination(subMap(raw, "coordination"))
	enforcePremium(subMap(raw, "premium"))

	if v, ok := number(raw, "epistemicDrift"); ok {
		raw["epistemicDrift"] = clamp(v, 0, 100)
	}
	raw["confidenceScore"] = clamp(numberOr(raw, "confidenceScore", defaultConfidence), 0, 100)

	enforceQuadrant(raw)

	return raw
}

// enforceVMS rewrites score = round(0.65*tableCoordMatch + 0.35*textMatch)
// with both inputs clamped to [0,100]. Whatever score the model reported is
// always replaced.
func enforceVMS(vms map[string]interface{}) {
	if vms == nil {
		return
	}
	table := clamp(numberOr(vms, "tableCoordMatch", 0), 0, 100)
	text := clamp(numberOr(vms, "textMatch", 0), 0, 100)
	vms["tableCoordMatch"] = table
	vms["textMatch"] = text
	vms["score"] = math.Round(vmsTableWeight*table + vmsTextWeight*text)
}

// enforceOverreaction derives ratio = |priceVelocity| / |fundamentalVelocity|
// rounded to one decimal. A fundamental velocity explicitly reported as zero
// against a non-zero price move is the defined extreme case (ratio 10.0); an
// absent fundamental velocity defaults to 1 so the division stays defined.
func enforceOverreaction(or map[string]interface{}) {
	if or == nil {
		return
	}
	pv := math.Abs(numberOr(or, "priceVelocity", 0))
	fv, fvPresent := number(or, "fundamentalVelocity")
	fv = math.Abs(fv)
	if !fvPresent {
		fv = 1
	}

	ratio := 0.0
	switch {
	case pv > 0 && fv > 0:
		ratio = math.Round(pv/fv*10) / 10
	case pv > 0 && fv == 0:
		ratio = overreactionCeiling
	}
	or["ratio"] = ratio

	switch {
	case ratio >= 4.0:
		or["verdict"] = OverreactionExtreme
	case ratio >= 2.0:
		or["verdict"] = OverreactionElevated
	default:
		or["verdict"] = OverreactionNormal
	}
}

// enforceHalfLife clamps halfLife.days to [1,180]. The sub-structure is
// always materialized so downstream consumers can rely on the field.
func enforceHalfLife(raw map[string]interface{}) {
	hl := subMap(raw, "halfLife")
	if hl == nil {
		hl = map[string]interface{}{}
		raw["halfLife"] = hl
	}
	hl["days"] = clamp(numberOr(hl, "days", halfLifeDefaultDays), halfLifeMinDays, halfLifeMaxDays)
}

func enforceCoordination(coord map[string]interface{}) {
	if coord == nil {
		return
	}
	score := clamp(numberOr(coord, "score", 0), 0, 100)
	coord["score"] = score
	switch {
	case score >= 60:
		coord["verdict"] = CoordinationHigh
	case score >= 30:
		coord["verdict"] = CoordinationModerate
	default:
		coord["verdict"] = CoordinationLow
	}
}

// enforcePremium derives percentage = round((impliedPrice-fairValue)/fairValue*100)
// only when both prices are strictly positive; otherwise the field is cleared.
func enforcePremium(prem map[string]interface{}) {
	if prem == nil {
		return
	}
	fv := numberOr(prem, "fairValue", 0)
	ip := numberOr(prem, "impliedPrice", 0)
	if fv > 0 && ip > 0 {
		prem["percentage"] = math.Round((ip - fv) / fv * 100)
	} else {
		prem["percentage"] = 0.0
	}
}

// enforceQuadrant maps evidence strength and narrative intensity onto the
// divergence quadrants, with both axes clamped and split at 50.
func enforceQuadrant(raw map[string]interface{}) {
	ev, evOK := number(raw, "evidenceStrength")
	ni, niOK := number(raw, "narrativeIntensity")
	if !evOK || !niOK {
		return
	}
	ev = clamp(ev, 0, 100)
	ni = clamp(ni, 0, 100)
	raw["evidenceStrength"] = ev
	raw["narrativeIntensity"] = ni

	switch {
	case ev >= 50 && ni >= 50:
		raw["quadrant"] = QuadrantValidCatalyst
	case ev >= 50:
		raw["quadrant"] = QuadrantFactualAnchor
	case ni >= 50:
		raw["quadrant"] = QuadrantNarrativeTrap
	default:
		raw["quadrant"] = QuadrantMarketNoise
	}
}
