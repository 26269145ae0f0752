package forensic

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func vmsScore(t *testing.T, raw map[string]interface{}) float64 {
	t.Helper()
	v, ok := number(subMap(raw, "vms"), "score")
	if !ok {
		t.Fatalf("vms.score missing after enforcement: %v", raw)
	}
	return v
}

func TestVMSScoreDerivedFromComponents(t *testing.T) {
	raw := map[string]interface{}{
		"vms": map[string]interface{}{
			"tableCoordMatch": 80.0,
			"textMatch":       40.0,
			// Model-supplied score must be discarded.
			"score": 99.0,
		},
	}
	Enforce(raw)

	if got := vmsScore(t, raw); got != 66 {
		t.Errorf("expected score 66 (0.65*80 + 0.35*40 rounded), got %v", got)
	}
}

func TestVMSInputsClamped(t *testing.T) {
	cases := []struct {
		name        string
		table, text float64
		want        float64
	}{
		{"above range", 250, 140, 100}, // clamped to 100/100
		{"below range", -30, -5, 0},
		{"mixed", 120, -10, 65}, // 0.65*100 + 0.35*0
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := map[string]interface{}{
				"vms": map[string]interface{}{"tableCoordMatch": tc.table, "textMatch": tc.text},
			}
			Enforce(raw)
			if got := vmsScore(t, raw); got != tc.want {
				t.Errorf("table=%v text=%v: expected score %v, got %v", tc.table, tc.text, tc.want, got)
			}
		})
	}
}

func TestVMSExhaustiveGridMatchesFormula(t *testing.T) {
	for table := 0.0; table <= 100; table += 10 {
		for text := 0.0; text <= 100; text += 10 {
			raw := map[string]interface{}{
				"vms": map[string]interface{}{"tableCoordMatch": table, "textMatch": text, "score": -1.0},
			}
			Enforce(raw)
			want := math.Round(0.65*table + 0.35*text)
			if got := vmsScore(t, raw); got != want {
				t.Fatalf("table=%v text=%v: expected %v, got %v", table, text, want, got)
			}
		}
	}
}

func TestOverreactionRatioCaseStudy(t *testing.T) {
	// -17% price move against +114% revenue growth: textbook underreaction,
	// round(17/114*10)/10 = 0.1.
	raw := map[string]interface{}{
		"overreaction": map[string]interface{}{
			"priceVelocity":       -17.0,
			"fundamentalVelocity": 114.0,
		},
	}
	Enforce(raw)

	or := subMap(raw, "overreaction")
	if ratio, _ := number(or, "ratio"); ratio != 0.1 {
		t.Errorf("expected ratio 0.1, got %v", ratio)
	}
	if or["verdict"] != OverreactionNormal {
		t.Errorf("expected NORMAL verdict, got %v", or["verdict"])
	}
}

func TestOverreactionVerdictBoundaries(t *testing.T) {
	cases := []struct {
		pv, fv  float64
		ratio   float64
		verdict string
	}{
		{20, 10, 2.0, OverreactionElevated}, // closed at 2.0
		{19, 10, 1.9, OverreactionNormal},
		{40, 10, 4.0, OverreactionExtreme}, // closed at 4.0
		{39, 10, 3.9, OverreactionElevated},
		{50, 10, 5.0, OverreactionExtreme},
		{0, 10, 0.0, OverreactionNormal},
	}
	for _, tc := range cases {
		raw := map[string]interface{}{
			"overreaction": map[string]interface{}{"priceVelocity": tc.pv, "fundamentalVelocity": tc.fv},
		}
		Enforce(raw)
		or := subMap(raw, "overreaction")
		if ratio, _ := number(or, "ratio"); ratio != tc.ratio {
			t.Errorf("pv=%v fv=%v: expected ratio %v, got %v", tc.pv, tc.fv, tc.ratio, ratio)
		}
		if or["verdict"] != tc.verdict {
			t.Errorf("pv=%v fv=%v: expected verdict %v, got %v", tc.pv, tc.fv, tc.verdict, or["verdict"])
		}
	}
}

func TestOverreactionZeroFundamental(t *testing.T) {
	// Price moved on explicitly zero fundamental change: defined extreme case.
	raw := map[string]interface{}{
		"overreaction": map[string]interface{}{"priceVelocity": 8.0, "fundamentalVelocity": 0.0},
	}
	Enforce(raw)
	or := subMap(raw, "overreaction")
	if ratio, _ := number(or, "ratio"); ratio != 10.0 {
		t.Errorf("expected ratio 10.0, got %v", ratio)
	}
	if or["verdict"] != OverreactionExtreme {
		t.Errorf("expected EXTREME, got %v", or["verdict"])
	}
}

func TestOverreactionAbsentFundamentalDefaultsToOne(t *testing.T) {
	raw := map[string]interface{}{
		"overreaction": map[string]interface{}{"priceVelocity": -3.0},
	}
	Enforce(raw)
	or := subMap(raw, "overreaction")
	if ratio, _ := number(or, "ratio"); ratio != 3.0 {
		t.Errorf("expected ratio 3.0 with fv defaulted to 1, got %v", ratio)
	}
}

func TestHalfLifeClampAndDefault(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"within range", map[string]interface{}{"days": 30.0}, 30},
		{"below minimum", map[string]interface{}{"days": -5.0}, 1},
		{"above maximum", map[string]interface{}{"days": 900.0}, 180},
		{"non-numeric", map[string]interface{}{"days": "soon"}, 14},
		{"empty object", map[string]interface{}{}, 14},
		{"absent entirely", nil, 14},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := map[string]interface{}{}
			if tc.in != nil {
				raw["halfLife"] = tc.in
			}
			Enforce(raw)
			got, ok := number(subMap(raw, "halfLife"), "days")
			if !ok {
				t.Fatalf("halfLife.days not materialized")
			}
			if got != tc.want {
				t.Errorf("expected days %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCoordinationBoundaries(t *testing.T) {
	cases := []struct {
		score   float64
		want    float64
		verdict string
	}{
		{60, 60, CoordinationHigh}, // closed at 60
		{59.5, 59.5, CoordinationModerate},
		{30, 30, CoordinationModerate}, // closed at 30
		{29, 29, CoordinationLow},
		{150, 100, CoordinationHigh},
		{-10, 0, CoordinationLow},
	}
	for _, tc := range cases {
		raw := map[string]interface{}{
			"coordination": map[string]interface{}{"score": tc.score},
		}
		Enforce(raw)
		coord := subMap(raw, "coordination")
		if got, _ := number(coord, "score"); got != tc.want {
			t.Errorf("score=%v: expected clamped %v, got %v", tc.score, tc.want, got)
		}
		if coord["verdict"] != tc.verdict {
			t.Errorf("score=%v: expected verdict %v, got %v", tc.score, tc.verdict, coord["verdict"])
		}
	}
}

func TestPremiumPercentage(t *testing.T) {
	cases := []struct {
		name   string
		fv, ip float64
		want   float64
	}{
		{"overcorrection", 128, 95, -26}, // round(-25.78)
		{"premium", 100, 150, 50},
		{"fair valued", 100, 100, 0},
		{"zero fair value", 0, 95, 0},
		{"negative implied", 100, -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := map[string]interface{}{
				"premium": map[string]interface{}{"fairValue": tc.fv, "impliedPrice": tc.ip, "percentage": 77.0},
			}
			Enforce(raw)
			if got, _ := number(subMap(raw, "premium"), "percentage"); got != tc.want {
				t.Errorf("fv=%v ip=%v: expected %v, got %v", tc.fv, tc.ip, tc.want, got)
			}
		})
	}
}

func TestConfidenceAndDrift(t *testing.T) {
	raw := map[string]interface{}{"epistemicDrift": 140.0}
	Enforce(raw)
	if got, _ := number(raw, "epistemicDrift"); got != 100 {
		t.Errorf("expected drift clamped to 100, got %v", got)
	}
	if got, _ := number(raw, "confidenceScore"); got != 50 {
		t.Errorf("expected default confidence 50, got %v", got)
	}

	raw = map[string]interface{}{"confidenceScore": -12.0}
	Enforce(raw)
	if got, _ := number(raw, "confidenceScore"); got != 0 {
		t.Errorf("expected confidence clamped to 0, got %v", got)
	}
	if _, ok := number(raw, "epistemicDrift"); ok {
		t.Errorf("drift should stay absent when not provided")
	}
}

func TestQuadrantDerivation(t *testing.T) {
	cases := []struct {
		ev, ni float64
		want   string
	}{
		{80, 70, QuadrantValidCatalyst},
		{80, 20, QuadrantFactualAnchor},
		{20, 80, QuadrantNarrativeTrap},
		{20, 20, QuadrantMarketNoise},
		{50, 50, QuadrantValidCatalyst}, // closed at 50 on both axes
	}
	for _, tc := range cases {
		raw := map[string]interface{}{
			"evidenceStrength":   tc.ev,
			"narrativeIntensity": tc.ni,
			"quadrant":           "WRONG",
		}
		Enforce(raw)
		if raw["quadrant"] != tc.want {
			t.Errorf("ev=%v ni=%v: expected %v, got %v", tc.ev, tc.ni, tc.want, raw["quadrant"])
		}
	}
}

func TestEnforceIsTotal(t *testing.T) {
	// Garbage in every field must degrade to defaults, never panic.
	raw := map[string]interface{}{
		"vms":             "not an object",
		"overreaction":    []interface{}{1, 2},
		"halfLife":        map[string]interface{}{"days": []interface{}{}},
		"coordination":    42.0,
		"premium":         nil,
		"confidenceScore": "high",
	}
	out := Enforce(raw)
	if got, _ := number(subMap(out, "halfLife"), "days"); got != 14 {
		t.Errorf("expected default half-life 14, got %v", got)
	}
	if got, _ := number(out, "confidenceScore"); got != 50 {
		t.Errorf("expected default confidence 50, got %v", got)
	}

	if out := Enforce(nil); out == nil {
		t.Fatal("Enforce(nil) should return a usable map")
	}
}

func TestEnforceIdempotent(t *testing.T) {
	raw := map[string]interface{}{
		"vms":                map[string]interface{}{"tableCoordMatch": 173.0, "textMatch": -4.0, "score": 3.0},
		"overreaction":       map[string]interface{}{"priceVelocity": -50.0, "fundamentalVelocity": 10.0},
		"halfLife":           map[string]interface{}{"days": 500.0},
		"coordination":       map[string]interface{}{"score": 61.0},
		"premium":            map[string]interface{}{"fairValue": 128.0, "impliedPrice": 95.0},
		"epistemicDrift":     120.0,
		"evidenceStrength":   30.0,
		"narrativeIntensity": 90.0,
	}
	first := Enforce(raw)

	// Deep copy via JSON round trip, then enforce again.
	b, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var second map[string]interface{}
	if err := json.Unmarshal(b, &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	Enforce(second)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("enforcement not idempotent:\nfirst:  %v\nsecond: %v", first, second)
	}
}
