package catalogtype

import "strings"

// QueryIntent is the routing decision for a natural-language question.
type QueryIntent string

const (
	IntentSchema        QueryIntent = "schema"
	IntentLineage       QueryIntent = "lineage"
	IntentRelationships QueryIntent = "relationships"
	IntentQuality       QueryIntent = "quality"
	IntentDiscovery     QueryIntent = "discovery"
	IntentGeneral       QueryIntent = "general"
)

// ParseIntent maps a classifier label onto a known intent. Anything it
// does not recognize, including an empty string, falls back to general.
func ParseIntent(label string) QueryIntent {
	switch QueryIntent(strings.ToLower(strings.TrimSpace(label))) {
	case IntentSchema:
		return IntentSchema
	case IntentLineage:
		return IntentLineage
	case IntentRelationships:
		return IntentRelationships
	case IntentQuality:
		return IntentQuality
	case IntentDiscovery:
		return IntentDiscovery
	default:
		return IntentGeneral
	}
}
