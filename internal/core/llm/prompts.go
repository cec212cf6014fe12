package llm

import (
	"strconv"
	"strings"
)

// Prompt template placeholders.
const (
	promptCountPlaceholder     = "{{ITEM_COUNT}}"
	promptThresholdPlaceholder = "{{THRESHOLD}}"
	promptPeriodPlaceholder    = "{{PERIOD}}"
)

// SystemContextArchitect frames every reasoning request. The stages pass it
// as the system message so scoring stays anchored to the same audience.
const SystemContextArchitect = `You are a senior software architect tracking the AI engineering ecosystem.
You evaluate incoming signals (releases, papers, posts, incidents) for their
practical impact on teams building production AI systems. Be concrete and
skeptical; marketing language does not raise a score.`

const rankBatchPrompt = `Score each of the {{ITEM_COUNT}} signals below. Return STRICT JSON ONLY:
a JSON array of length {{ITEM_COUNT}}, one object per signal, any order,
correlated by index. If your output must be a top-level object, wrap the
array as {"rankings": [...]}. Use double quotes. No trailing commas. No
markdown.

Each object must include:
- index: integer — the [N] marker of the signal it scores
- score: integer 1-10 — practical significance for production AI engineering
  - 1-3 = noise, marketing, duplicates of long-known material
  - 4-6 = worth awareness, routine releases, incremental results
  - 7-8 = changes how teams should build or operate systems
  - 9-10 = industry-shifting, act on it this week
- dimensions: array of strings, one or more of: tooling, architecture, research,
  production, ecosystem, security, performance
- impact: one of: low, medium, high, critical
- maturity: one of: experimental, emerging, production-viable, consolidated, declining
- justification: string — ONE sentence naming the concrete reason for the score

Signals scoring below {{THRESHOLD}} will be set aside, so reserve 4+ for
signals a working architect should actually read.

Signals:
`

const analysisPrompt = `Analyze the signal below for a team building production AI systems.
Return STRICT JSON ONLY: a single JSON object. Use double quotes. No markdown.

The object must include:
- summary: string — 2-4 sentences, the essence of the signal
- insights: array of strings — non-obvious takeaways, empty if none
- code_artifacts: array of strings — repos, packages or APIs named in the signal
- applicability: string — how a team could apply this now, or why not yet
- architectural_implications: string — effect on system design, "" if none
- topics: array of strings — short lowercase topic tags
- competitive_notes: string — vendor or ecosystem positioning, "" if none

Signal:
`

// analysisReinforcement is appended when the first response failed
// validation. Kept separate so the retry prompt stays identical otherwise.
const analysisReinforcement = `

IMPORTANT: the previous response was not valid JSON matching the schema.
Respond with ONLY the JSON object. No explanation, no markdown fences,
every key present even when empty.`

const dailySynthesisPrompt = `Synthesize the analyzed signals from {{PERIOD}} into a daily brief for a
software architect. Return STRICT JSON ONLY: a single JSON object.

The object must include:
- relevance_score: integer 1-10 — how much this day matters overall
- summary: string — 3-5 sentences on the day's shape
- trends: array of {statement: string, evidence_ids: array of signal id strings, confidence: number 0-1}
- highlights: array of strings — the signals worth reading in full
- actions: array of strings — concrete follow-ups, empty if none
- maturity_changes: array of {topic: string, from: string, to: string} using the maturity scale
- competitive_shifts: array of strings
- risk_assessment: string

Every trend statement must cite evidence_ids drawn from the signals below.
Do not invent signals.

Signals:
`

const weeklySynthesisPrompt = `Synthesize the daily briefs from week {{PERIOD}} into a weekly review.
Work ONLY from the briefs below; do not reach past them. Return STRICT JSON
ONLY: a single JSON object with the same schema as a daily brief
(relevance_score, summary, trends, highlights, actions, maturity_changes,
competitive_shifts, risk_assessment). Weight developments that persisted
across multiple days over one-day spikes.

Daily briefs:
`

const monthlySynthesisPrompt = `Synthesize the weekly reviews from {{PERIOD}} into a monthly strategic report.
Work ONLY from the reviews below. Return STRICT JSON ONLY: a single JSON
object with the same schema as a daily brief (relevance_score, summary,
trends, highlights, actions, maturity_changes, competitive_shifts,
risk_assessment). Focus on direction: what consolidated, what faded, what a
team should change in its stack or roadmap.

Weekly reviews:
`

// RankBatchPrompt renders the batch scoring prompt for n items followed by
// the pre-formatted item block. Items must carry [N] index markers at line
// start; the batch correspondence check depends on them.
func RankBatchPrompt(n, threshold int, items string) string {
	prompt := strings.ReplaceAll(rankBatchPrompt, promptCountPlaceholder, strconv.Itoa(n))
	prompt = strings.ReplaceAll(prompt, promptThresholdPlaceholder, strconv.Itoa(threshold))

	return prompt + items
}

// AnalysisPrompt renders the per-signal analysis prompt. When reinforced is
// set the JSON-only reminder is inserted before the signal body.
func AnalysisPrompt(signal string, reinforced bool) string {
	if reinforced {
		return analysisPrompt + signal + analysisReinforcement
	}

	return analysisPrompt + signal
}

// SynthesisPrompt renders the synthesis prompt for one period. The mode
// selects the template; periodKey labels the period inside the prompt and
// body carries the pre-formatted inputs.
func SynthesisPrompt(mode, periodKey, body string) string {
	var template string

	switch mode {
	case "weekly":
		template = weeklySynthesisPrompt
	case "monthly":
		template = monthlySynthesisPrompt
	default:
		template = dailySynthesisPrompt
	}

	return strings.ReplaceAll(template, promptPeriodPlaceholder, periodKey) + body
}
