// Package answer turns a classified question into a grounded response:
// structured intents read catalog facts, everything else goes through
// hybrid retrieval, and the generation model (when configured) writes
// the final prose over that evidence.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/classifier"
	"github.com/fsgeodata/catalog-kb-go/internal/generation"
)

const defaultTopK = 5

const answerSystemPrompt = `You answer questions about a geospatial metadata catalog.
Use only the provided context. If the context does not contain the answer, say so plainly.
Be concise and factual; cite dataset and field names exactly as given.`

// Catalog is the structured-facts port the assembler reads from.
type Catalog interface {
	GetSchema(ctx context.Context, name string) (*catalogtype.DatasetSchema, error)
	GetFieldLineage(ctx context.Context, dataset, field string) (*catalogtype.LineageResult, error)
	GetRelationships(ctx context.Context, dataset string) (*catalogtype.RelationshipResult, error)
}

// Retriever is the hybrid retrieval port.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]catalogtype.RankedDocument, error)
}

// Assembler routes questions and builds answers.
type Assembler struct {
	catalog    Catalog
	retriever  Retriever
	classifier *classifier.Classifier
	generator  generation.Generator
}

// New builds an assembler. The generator may be nil; answers are then
// extractive summaries of the gathered evidence.
func New(catalog Catalog, retriever Retriever, cls *classifier.Classifier, generator generation.Generator) *Assembler {
	return &Assembler{catalog: catalog, retriever: retriever, classifier: cls, generator: generator}
}

// Respond answers one question. Unsupported intents and unknown entities
// produce a plain-language answer rather than an error; only malformed
// input, store failures, and generation failures surface as errors.
func (a *Assembler) Respond(ctx context.Context, question string, topK int) (*catalogtype.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question cannot be empty", catalogtype.ErrInvalidArgument)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	cls := a.classifier.Classify(ctx, question)
	ans := &catalogtype.Answer{Question: question, Intent: cls.Intent}

	facts, err := a.structuredFacts(ctx, cls)
	switch {
	case err == nil && facts != nil:
		ans.Evidence = []catalogtype.EvidenceItem{*facts}
		return a.finish(ctx, ans)
	case errors.Is(err, catalogtype.ErrUnsupportedIntent):
		ans.AnswerText = fmt.Sprintf("Questions about %s are not supported yet. Try asking about a dataset's schema, field lineage, or relationships.", cls.Intent)
		return ans, nil
	case errors.Is(err, catalogtype.ErrNotFound):
		ans.AnswerText = notFoundAnswer(cls)
		return ans, nil
	case err != nil:
		return nil, err
	}

	// General questions and structured intents missing a target go
	// through retrieval.
	docs, err := a.retriever.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		ans.Evidence = append(ans.Evidence, catalogtype.EvidenceItem{
			Kind:    catalogtype.EvidenceDocument,
			Source:  doc.Chunk.Dataset,
			Content: doc.Chunk.Content,
			Score:   doc.Score,
		})
	}
	if len(ans.Evidence) == 0 {
		ans.AnswerText = "No relevant information was found in the catalog for this question."
		return ans, nil
	}
	return a.finish(ctx, ans)
}

// structuredFacts resolves a structured intent into one facts evidence
// block. A nil, nil return means the intent (or a missing target) calls
// for the retrieval path instead.
func (a *Assembler) structuredFacts(ctx context.Context, cls classifier.Classification) (*catalogtype.EvidenceItem, error) {
	switch cls.Intent {
	case catalogtype.IntentSchema:
		if cls.Dataset == "" {
			return nil, nil
		}
		schema, err := a.catalog.GetSchema(ctx, cls.Dataset)
		if err != nil {
			return nil, err
		}
		return &catalogtype.EvidenceItem{
			Kind:    catalogtype.EvidenceFacts,
			Source:  schema.Dataset.Name,
			Content: formatSchema(schema),
		}, nil
	case catalogtype.IntentLineage:
		if cls.Dataset == "" || cls.Field == "" {
			return nil, nil
		}
		lineage, err := a.catalog.GetFieldLineage(ctx, cls.Dataset, cls.Field)
		if err != nil {
			return nil, err
		}
		return &catalogtype.EvidenceItem{
			Kind:    catalogtype.EvidenceFacts,
			Source:  lineage.Dataset + "." + lineage.Field,
			Content: formatLineage(lineage),
		}, nil
	case catalogtype.IntentRelationships:
		if cls.Dataset == "" {
			return nil, nil
		}
		rels, err := a.catalog.GetRelationships(ctx, cls.Dataset)
		if err != nil {
			return nil, err
		}
		return &catalogtype.EvidenceItem{
			Kind:    catalogtype.EvidenceFacts,
			Source:  rels.Dataset,
			Content: formatRelationships(rels),
		}, nil
	case catalogtype.IntentQuality, catalogtype.IntentDiscovery:
		return nil, fmt.Errorf("%w: %s", catalogtype.ErrUnsupportedIntent, cls.Intent)
	default:
		return nil, nil
	}
}

// finish writes the answer text over the gathered evidence, through the
// generator when one is configured.
func (a *Assembler) finish(ctx context.Context, ans *catalogtype.Answer) (*catalogtype.Answer, error) {
	if a.generator == nil {
		ans.AnswerText = extractiveAnswer(ans.Evidence)
		return ans, nil
	}
	var sb strings.Builder
	for i, ev := range ans.Evidence {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, ev.Content)
	}
	text, err := a.generator.Complete(ctx, generation.Request{
		System:      answerSystemPrompt,
		Prompt:      fmt.Sprintf("Context:\n%s\nQuestion: %s", sb.String(), ans.Question),
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalogtype.ErrGeneration, err)
	}
	ans.AnswerText = text
	return ans, nil
}

func notFoundAnswer(cls classifier.Classification) string {
	target := cls.Dataset
	if cls.Field != "" {
		target = cls.Dataset + "." + cls.Field
	}
	if target == "" {
		target = "the requested entity"
	}
	return fmt.Sprintf("The catalog has no entry matching %q. Check the name or list the available datasets.", target)
}

// extractiveAnswer is the no-generator fallback: the first facts block
// verbatim, or the best retrieved chunk.
func extractiveAnswer(evidence []catalogtype.EvidenceItem) string {
	if len(evidence) == 0 {
		return "No relevant information was found in the catalog for this question."
	}
	return evidence[0].Content
}
