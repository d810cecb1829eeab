package answer

import (
	"fmt"
	"strings"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

// formatSchema renders a dataset schema as plain text, primary keys
// first, one attribute per line with its constraints and domain.
func formatSchema(schema *catalogtype.DatasetSchema) string {
	var sb strings.Builder
	d := schema.Dataset
	fmt.Fprintf(&sb, "Dataset %s (%s)", d.Name, d.Kind)
	if d.DisplayName != "" {
		fmt.Fprintf(&sb, " - %s", d.DisplayName)
	}
	sb.WriteString("\n")
	if d.SourceSystem != "" {
		fmt.Fprintf(&sb, "Source system: %s\n", d.SourceSystem)
	}
	if d.RecordCount > 0 {
		fmt.Fprintf(&sb, "Records: %d\n", d.RecordCount)
	}
	fmt.Fprintf(&sb, "Fields (%d):\n", len(schema.Attributes))
	for _, a := range schema.Attributes {
		sb.WriteString("  - ")
		sb.WriteString(a.Label)
		if a.DataType != "" {
			fmt.Fprintf(&sb, " (%s)", a.DataType)
		}
		var tags []string
		if a.PrimaryKey {
			tags = append(tags, "primary key")
		}
		if a.ForeignKey {
			tags = append(tags, "foreign key")
		}
		if !a.Nullable {
			tags = append(tags, "not null")
		}
		if len(tags) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(tags, ", "))
		}
		if a.Definition != "" {
			fmt.Fprintf(&sb, ": %s", a.Definition)
		}
		sb.WriteString("\n")
		for _, dv := range a.DomainValues {
			fmt.Fprintf(&sb, "      %s\n", formatDomainValue(dv))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDomainValue(dv catalogtype.DomainValue) string {
	switch v := dv.(type) {
	case catalogtype.UnrepresentableDomain:
		return "domain: " + v.Description
	case catalogtype.EnumeratedDomain:
		return fmt.Sprintf("allowed value %q: %s", v.Value, v.ValueDefinition)
	case catalogtype.CodesetDomain:
		return fmt.Sprintf("codeset %s (%s)", v.Name, v.Source)
	case catalogtype.RangeDomain:
		parts := []string{}
		if v.Min != nil {
			parts = append(parts, fmt.Sprintf("min %g", *v.Min))
		}
		if v.Max != nil {
			parts = append(parts, fmt.Sprintf("max %g", *v.Max))
		}
		s := "range " + strings.Join(parts, ", ")
		if v.Units != "" {
			s += " " + v.Units
		}
		return s
	default:
		return ""
	}
}

// formatLineage renders the single-hop lineage of one field.
func formatLineage(l *catalogtype.LineageResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Lineage for %s.%s\n", l.Dataset, l.Field)
	if l.IsSourceField {
		sb.WriteString("This is a source field: no upstream fields feed it.\n")
	} else {
		sb.WriteString("Derived from:\n")
		for _, e := range l.Upstream {
			fmt.Fprintf(&sb, "  - %s.%s via %s%s\n",
				e.SourceDataset, e.SourceField, e.TransformationType, lineageSuffix(e))
		}
	}
	if len(l.Downstream) > 0 {
		sb.WriteString("Feeds into:\n")
		for _, e := range l.Downstream {
			fmt.Fprintf(&sb, "  - %s.%s via %s%s\n",
				e.TargetDataset, e.TargetField, e.TransformationType, lineageSuffix(e))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func lineageSuffix(e catalogtype.FieldLineageEdge) string {
	s := fmt.Sprintf(" (confidence %.2f", e.Confidence)
	if e.Verified {
		s += ", verified"
	}
	s += ")"
	if e.TransformationLogic != "" {
		s += ": " + e.TransformationLogic
	}
	return s
}

// formatRelationships renders the relationship edges touching a dataset.
func formatRelationships(r *catalogtype.RelationshipResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Relationships for %s\n", r.Dataset)
	if len(r.Outgoing) == 0 && len(r.Incoming) == 0 {
		sb.WriteString("No recorded relationships.")
		return sb.String()
	}
	if len(r.Outgoing) > 0 {
		sb.WriteString("References:\n")
		for _, e := range r.Outgoing {
			fmt.Fprintf(&sb, "  - %s.%s -> %s.%s (%s%s)\n",
				e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField,
				e.RelationshipType, cardinalitySuffix(e))
		}
	}
	if len(r.Incoming) > 0 {
		sb.WriteString("Referenced by:\n")
		for _, e := range r.Incoming {
			fmt.Fprintf(&sb, "  - %s.%s -> %s.%s (%s%s)\n",
				e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField,
				e.RelationshipType, cardinalitySuffix(e))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func cardinalitySuffix(e catalogtype.RelationshipEdge) string {
	if e.Cardinality == "" {
		return ""
	}
	return ", " + e.Cardinality
}
