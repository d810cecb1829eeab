package catalogtype

import (
	"fmt"
	"strings"
)

// DomainKind tags the four attribute domain value variants.
type DomainKind string

const (
	DomainUnrepresentable DomainKind = "unrepresentable"
	DomainEnumerated      DomainKind = "enumerated"
	DomainCodeset         DomainKind = "codeset"
	DomainRange           DomainKind = "range"
)

// DomainValue is the closed union of attribute domain constraints. Each
// variant validates its own invariant; a value that fails Validate is
// never persisted.
type DomainValue interface {
	Kind() DomainKind
	Validate() error
}

// UnrepresentableDomain is a free-text description of valid values, used
// when the contents fit no structured pattern.
type UnrepresentableDomain struct {
	Description string `json:"description"`
}

func (d UnrepresentableDomain) Kind() DomainKind { return DomainUnrepresentable }

func (d UnrepresentableDomain) Validate() error {
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: unrepresentable domain requires a description", ErrValidation)
	}
	return nil
}

// EnumeratedDomain is one discrete allowed code with its definition.
type EnumeratedDomain struct {
	Value            string `json:"value"`
	ValueDefinition  string `json:"valueDefinition"`
	DefinitionSource string `json:"definitionSource,omitempty"`
}

func (d EnumeratedDomain) Kind() DomainKind { return DomainEnumerated }

func (d EnumeratedDomain) Validate() error {
	if strings.TrimSpace(d.Value) == "" {
		return fmt.Errorf("%w: enumerated domain requires a value", ErrValidation)
	}
	if strings.TrimSpace(d.ValueDefinition) == "" {
		return fmt.Errorf("%w: enumerated domain value %q requires a definition", ErrValidation, d.Value)
	}
	return nil
}

// CodesetDomain references an external controlled vocabulary.
type CodesetDomain struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func (d CodesetDomain) Kind() DomainKind { return DomainCodeset }

func (d CodesetDomain) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: codeset domain requires a name", ErrValidation)
	}
	if strings.TrimSpace(d.Source) == "" {
		return fmt.Errorf("%w: codeset domain %q requires a source", ErrValidation, d.Name)
	}
	return nil
}

// RangeDomain constrains numeric contents. Either bound may be absent;
// when both are present the minimum must not exceed the maximum.
type RangeDomain struct {
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Units string   `json:"units,omitempty"`
}

func (d RangeDomain) Kind() DomainKind { return DomainRange }

func (d RangeDomain) Validate() error {
	if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
		return fmt.Errorf("%w: range minimum %g exceeds maximum %g", ErrValidation, *d.Min, *d.Max)
	}
	return nil
}

// DomainValueSpec is the flat, tagged wire form of a DomainValue, used
// on ingestion and tool payloads where a closed interface cannot appear.
type DomainValueSpec struct {
	Kind             DomainKind `json:"kind"`
	Description      string     `json:"description,omitempty"`
	Value            string     `json:"value,omitempty"`
	ValueDefinition  string     `json:"valueDefinition,omitempty"`
	DefinitionSource string     `json:"definitionSource,omitempty"`
	CodesetName      string     `json:"codesetName,omitempty"`
	CodesetSource    string     `json:"codesetSource,omitempty"`
	Min              *float64   `json:"min,omitempty"`
	Max              *float64   `json:"max,omitempty"`
	Units            string     `json:"units,omitempty"`
}

// ToDomainValue converts the wire form into its union variant. The
// returned value is validated; an unknown kind or a broken invariant
// yields ErrValidation.
func (s DomainValueSpec) ToDomainValue() (DomainValue, error) {
	var dv DomainValue
	switch s.Kind {
	case DomainUnrepresentable:
		dv = UnrepresentableDomain{Description: s.Description}
	case DomainEnumerated:
		dv = EnumeratedDomain{Value: s.Value, ValueDefinition: s.ValueDefinition, DefinitionSource: s.DefinitionSource}
	case DomainCodeset:
		dv = CodesetDomain{Name: s.CodesetName, Source: s.CodesetSource}
	case DomainRange:
		dv = RangeDomain{Min: s.Min, Max: s.Max, Units: s.Units}
	default:
		return nil, fmt.Errorf("%w: unknown domain value kind %q", ErrValidation, s.Kind)
	}
	if err := dv.Validate(); err != nil {
		return nil, err
	}
	return dv, nil
}

// SpecFromDomainValue flattens a union variant back to the wire form.
func SpecFromDomainValue(dv DomainValue) DomainValueSpec {
	switch v := dv.(type) {
	case UnrepresentableDomain:
		return DomainValueSpec{Kind: DomainUnrepresentable, Description: v.Description}
	case EnumeratedDomain:
		return DomainValueSpec{Kind: DomainEnumerated, Value: v.Value, ValueDefinition: v.ValueDefinition, DefinitionSource: v.DefinitionSource}
	case CodesetDomain:
		return DomainValueSpec{Kind: DomainCodeset, CodesetName: v.Name, CodesetSource: v.Source}
	case RangeDomain:
		return DomainValueSpec{Kind: DomainRange, Min: v.Min, Max: v.Max, Units: v.Units}
	default:
		return DomainValueSpec{}
	}
}
