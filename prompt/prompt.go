// Package prompt assembles provider instruction payloads for the forensic
// audit. Building a prompt is pure: no I/O, no failure modes beyond
// truncating oversized content to a provider-specific cap.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"marketscholar/types"
)

// Prompt is the provider-ready instruction payload.
type Prompt struct {
	System string
	User   string
	// Ticker is an opportunistic symbol guess included as a hint only.
	Ticker string
}

// systemInstruction frames the model as an adversarial auditor and
// enumerates the target JSON shape. The schema text is documentation for
// the model, not machine validation: the enforcement engine re-derives
// every score regardless of what comes back.
const systemInstruction = `You are a FORENSIC PROSECUTOR auditing financial claims.

Your job: find the gap between NARRATIVE (what the text claims) and STRUCTURAL REALITY (what hard data shows). Hard anchors (GAAP metrics, filings, dated events, sourced statistics) carry 65% weight; soft narrative (predictions, sentiment, "could"/"might" language) carries 35%.

Score honestly. Overreaction compares price velocity against fundamental velocity as an annualized quarterly rate. Coordination measures evidence of synchronized publication across sources. Half-life is the number of days until the narrative's influence decays to half its peak.

Return ONLY valid JSON (no markdown, no commentary) in this shape:
{
  "auditVerdict": "VERIFIED | PARTIAL | UNVERIFIED | MISLEADING | NARRATIVE_TRAP",
  "summary": "two-sentence plain-language finding",
  "vms": {"tableCoordMatch": 0-100, "textMatch": 0-100, "score": 0-100, "narrative": "claim audited", "anchor": "hardest data point found"},
  "overreaction": {"priceVelocity": percent, "fundamentalVelocity": percent, "ratio": number, "verdict": "NORMAL | ELEVATED | EXTREME"},
  "halfLife": {"days": 1-180},
  "coordination": {"score": 0-100, "verdict": "LOW | MODERATE | HIGH"},
  "premium": {"fairValue": price, "impliedPrice": price, "percentage": percent},
  "epistemicDrift": 0-100,
  "confidenceScore": 0-100,
  "evidenceStrength": 0-100,
  "narrativeIntensity": 0-100,
  "hardAnchors": [{"claim": "...", "value": "...", "source": "...", "verifiable": true}],
  "softNarrative": ["prediction or opinion statement"]
}`

var modeFraming = map[string]string{
	types.ModeHeadline: "The text below is a headline or short market take. Audit the claim it makes.",
	types.ModeUpload:   "The text below is a full article extracted from a source page. Audit its central claims.",
	types.ModeThesis:   "The text below is an investment thesis written by the user. Audit it as if it were published research.",
}

var stanceFraming = map[string]string{
	types.StanceBullish: "The author holds a BULLISH stance. Prosecute the bull case: hunt for evidence the optimism is unearned.",
	types.StanceNeutral: "The author claims a NEUTRAL stance. Check whether the framing is as balanced as it pretends.",
	types.StanceBearish: "The author holds a BEARISH stance. Prosecute the bear case: hunt for evidence the pessimism is overdone.",
}

// tickerPattern finds candidate stock symbols: 1-5 uppercase letters.
var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// tickerStopwords are uppercase tokens that show up in financial prose but
// are never the subject ticker.
var tickerStopwords = map[string]bool{
	"A": true, "I": true, "CEO": true, "CFO": true, "IPO": true, "ETF": true,
	"GAAP": true, "SEC": true, "USA": true, "US": true, "AI": true, "Q": true,
	"EPS": true, "YOY": true, "NYSE": true, "GDP": true, "THE": true, "FY": true,
}

// Build assembles the provider payload, truncating content to maxChars.
func Build(content, mode, stance string, maxChars int) Prompt {
	mode = types.NormalizeMode(mode)
	stance = types.NormalizeStance(stance)

	if maxChars > 0 && len(content) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	ticker := GuessTicker(content)

	var user strings.Builder
	user.WriteString(modeFraming[mode])
	user.WriteString("\n")
	user.WriteString(stanceFraming[stance])
	if ticker != "" {
		fmt.Fprintf(&user, "\nLikely ticker (unverified hint): %s", ticker)
	}
	user.WriteString("\n\nTEXT TO AUDIT:\n")
	user.WriteString(content)

	return Prompt{System: systemInstruction, User: user.String(), Ticker: ticker}
}

// GuessTicker returns the first plausible uppercase symbol in the content,
// or "" if none is found. Purely a hint for the model.
func GuessTicker(content string) string {
	for _, candidate := range tickerPattern.FindAllString(content, 20) {
		if !tickerStopwords[candidate] {
			return candidate
		}
	}
	return ""
}
