// Package classifier routes natural-language questions to a query
// intent, using the generation model when one is configured and keyword
// heuristics otherwise. Classification never fails hard: anything the
// model cannot place lands on the general intent.
package classifier

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/generation"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
)

const classifierSystemPrompt = `You classify questions about a geospatial metadata catalog.
Reply with a single JSON object, nothing else:
{"intent": "<schema|lineage|relationships|quality|discovery|general>", "dataset": "<dataset name or empty>", "field": "<field name or empty>"}

Intents:
- schema: the structure, fields, columns, or types of a named dataset
- lineage: where a field's values come from or flow to
- relationships: how datasets reference or join each other
- quality: completeness, accuracy, or freshness of data
- discovery: which datasets exist for a topic
- general: anything else`

// Classification is the routing decision for one question.
type Classification struct {
	Intent  catalogtype.QueryIntent
	Dataset string
	Field   string
}

// Classifier decides the intent of a question.
type Classifier struct {
	generator generation.Generator
	timeout   time.Duration
}

// New builds a classifier over the given generator, which may be nil.
// CLASSIFIER_TIMEOUT bounds each model call (default 5s).
func New(generator generation.Generator) *Classifier {
	timeout := 5 * time.Second
	if v := strings.TrimSpace(os.Getenv("CLASSIFIER_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}
	return &Classifier{generator: generator, timeout: timeout}
}

// Classify returns the intent and any entity mentions it can pull out of
// the question. Model failures, timeouts, and unparseable replies all
// fall back to the keyword heuristics.
func (c *Classifier) Classify(ctx context.Context, question string) Classification {
	if c.generator != nil {
		if result, ok := c.classifyWithModel(ctx, question); ok {
			metrics.Default().IncIntent(string(result.Intent))
			return result
		}
		metrics.Default().IncClassifierFallback()
	}
	result := heuristicClassify(question)
	metrics.Default().IncIntent(string(result.Intent))
	return result
}

func (c *Classifier) classifyWithModel(ctx context.Context, question string) (Classification, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.generator.Complete(ctx, generation.Request{
		System:      classifierSystemPrompt,
		Prompt:      question,
		Temperature: 0,
		MaxTokens:   128,
	})
	if err != nil {
		log.Printf("Warning: Intent classification failed, using heuristics: %v", err)
		return Classification{}, false
	}

	var parsed struct {
		Intent  string `json:"intent"`
		Dataset string `json:"dataset"`
		Field   string `json:"field"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &parsed); err != nil {
		log.Printf("Warning: Unparseable classification reply %q, using heuristics", reply)
		return Classification{}, false
	}
	return Classification{
		Intent:  catalogtype.ParseIntent(parsed.Intent),
		Dataset: strings.TrimSpace(parsed.Dataset),
		Field:   strings.TrimSpace(parsed.Field),
	}, true
}

// extractJSONObject pulls the first {...} span out of a reply that may
// carry markdown fences or prose around the JSON.
func extractJSONObject(reply string) string {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return reply
	}
	return reply[start : end+1]
}

var intentKeywords = []struct {
	intent catalogtype.QueryIntent
	words  []string
}{
	{catalogtype.IntentLineage, []string{"lineage", "derived", "come from", "comes from", "flow", "provenance", "trace"}},
	{catalogtype.IntentRelationships, []string{"relationship", "related", "relate", "join", "foreign key", "reference", "connect"}},
	{catalogtype.IntentQuality, []string{"quality", "completeness", "complete", "accuracy", "null", "missing", "fresh"}},
	{catalogtype.IntentDiscovery, []string{"which dataset", "what datasets", "find dataset", "datasets about", "is there a dataset", "looking for data"}},
	{catalogtype.IntentSchema, []string{"schema", "field", "column", "attribute", "structure", "data type", "primary key"}},
}

func heuristicClassify(question string) Classification {
	lower := strings.ToLower(question)
	result := Classification{Intent: catalogtype.IntentGeneral}
	for _, k := range intentKeywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				result.Intent = k.intent
				result.Dataset, result.Field = ExtractTarget(question)
				return result
			}
		}
	}
	result.Dataset, result.Field = ExtractTarget(question)
	return result
}

// ExtractTarget scans a question for a dataset (and optionally field)
// mention. Qualified "Dataset.FIELD" tokens win; otherwise the first
// identifier-looking token (underscored or CamelCase) is taken as the
// dataset.
func ExtractTarget(question string) (dataset, field string) {
	for _, tok := range strings.Fields(question) {
		tok = strings.Trim(tok, ".,;:?!\"'()")
		if tok == "" {
			continue
		}
		if i := strings.Index(tok, "."); i > 0 && i < len(tok)-1 && identifierLike(tok[:i]) && identifierLike(tok[i+1:]) {
			return tok[:i], tok[i+1:]
		}
		if dataset == "" && identifierLike(tok) {
			dataset = tok
		}
	}
	return dataset, ""
}

// identifierLike reports whether a token resembles a catalog identifier
// rather than an English word: it contains an underscore, is fully
// uppercase (OBJECTID), or mixes case after the first rune (CamelCase).
func identifierLike(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	if strings.Contains(tok, "_") {
		return true
	}
	hasUpper, hasLower := false, false
	for _, r := range tok[1:] {
		if r >= 'A' && r <= 'Z' {
			hasUpper = true
		}
		if r >= 'a' && r <= 'z' {
			hasLower = true
		}
	}
	if hasUpper && !hasLower && len(tok) >= 3 {
		return true
	}
	return hasUpper && hasLower
}
