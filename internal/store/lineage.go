package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
)

var validTransformations = map[string]bool{
	catalogtype.TransformDirectCopy:    true,
	catalogtype.TransformCalculation:   true,
	catalogtype.TransformAggregation:   true,
	catalogtype.TransformConcatenation: true,
}

// AddFieldLineage records directed derived-from edges between existing
// fields. Each edge is validated (known transformation type, confidence
// in [0, 1], both endpoints present in the catalog) before anything is
// written; edges upsert on their endpoint tuple.
func (s *Store) AddFieldLineage(ctx context.Context, edges []catalogtype.FieldLineageEdge) error {
	done := metrics.TimeOp("db_add_field_lineage")
	success := false
	defer func() { done(success) }()

	for _, e := range edges {
		if err := s.validateLineageEdge(ctx, e); err != nil {
			return err
		}
	}

	err := withRetry(ctx, "add_field_lineage", func() error {
		return s.addLineageTx(ctx, edges)
	})
	if err != nil {
		return err
	}
	success = true
	return nil
}

func (s *Store) validateLineageEdge(ctx context.Context, e catalogtype.FieldLineageEdge) error {
	if strings.TrimSpace(e.SourceDataset) == "" || strings.TrimSpace(e.SourceField) == "" ||
		strings.TrimSpace(e.TargetDataset) == "" || strings.TrimSpace(e.TargetField) == "" {
		return fmt.Errorf("%w: lineage edge endpoints must be non-empty", catalogtype.ErrValidation)
	}
	if !validTransformations[e.TransformationType] {
		return fmt.Errorf("%w: unknown transformation type %q", catalogtype.ErrValidation, e.TransformationType)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("%w: lineage confidence must be within [0, 1], got %g", catalogtype.ErrValidation, e.Confidence)
	}
	for _, ep := range [][2]string{{e.SourceDataset, e.SourceField}, {e.TargetDataset, e.TargetField}} {
		ok, err := s.attributeExists(ctx, ep[0], ep[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: field %s.%s", catalogtype.ErrNotFound, ep[0], ep[1])
		}
	}
	return nil
}

func (s *Store) addLineageTx(ctx context.Context, edges []catalogtype.FieldLineageEdge) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for lineage edges: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, e := range edges {
		result, uErr := tx.ExecContext(ctx, `UPDATE field_lineage
            SET transformation_type = ?, transformation_logic = ?, confidence = ?, verified = ?, notes = ?
            WHERE source_dataset = ? AND source_field = ? AND target_dataset = ? AND target_field = ?`,
			e.TransformationType, e.TransformationLogic, e.Confidence, e.Verified, e.Notes,
			e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField)
		if uErr != nil {
			return fmt.Errorf("failed to update lineage edge %s.%s -> %s.%s: %w",
				e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField, uErr)
		}
		rowsAffected, raErr := result.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("failed to get rows affected for lineage update: %w", raErr)
		}
		if rowsAffected == 0 {
			if _, iErr := tx.ExecContext(ctx, `INSERT INTO field_lineage
                (source_dataset, source_field, target_dataset, target_field,
                 transformation_type, transformation_logic, confidence, verified, notes)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField,
				e.TransformationType, e.TransformationLogic, e.Confidence, e.Verified, e.Notes); iErr != nil {
				return fmt.Errorf("failed to insert lineage edge %s.%s -> %s.%s: %w",
					e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField, iErr)
			}
		}
	}
	return tx.Commit()
}

// GetFieldLineage returns the single-hop lineage view of one field:
// upstream edges that feed it and downstream edges that consume it.
// Dataset and field both resolve exact-first, then by fuzzy trigram
// match. A field with no upstream edges is a source field.
func (s *Store) GetFieldLineage(ctx context.Context, dataset, field string) (*catalogtype.LineageResult, error) {
	done := metrics.TimeOp("db_get_field_lineage")
	success := false
	defer func() { done(success) }()

	d, err := s.ResolveDataset(ctx, dataset)
	if err != nil {
		return nil, err
	}
	field, err = s.resolveAttribute(ctx, d.Name, field)
	if err != nil {
		return nil, err
	}

	upstream, err := s.queryLineageEdges(ctx,
		"WHERE target_dataset = ? AND target_field = ?", d.Name, field)
	if err != nil {
		return nil, err
	}
	downstream, err := s.queryLineageEdges(ctx,
		"WHERE source_dataset = ? AND source_field = ?", d.Name, field)
	if err != nil {
		return nil, err
	}

	success = true
	return &catalogtype.LineageResult{
		Dataset:       d.Name,
		Field:         field,
		Upstream:      upstream,
		Downstream:    downstream,
		IsSourceField: len(upstream) == 0,
	}, nil
}

func (s *Store) queryLineageEdges(ctx context.Context, where string, args ...any) ([]catalogtype.FieldLineageEdge, error) {
	query := `SELECT source_dataset, source_field, target_dataset, target_field,
        transformation_type, transformation_logic, confidence, verified, notes
        FROM field_lineage ` + where + ` ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage edges: %w", err)
	}
	defer rows.Close()

	edges := []catalogtype.FieldLineageEdge{}
	for rows.Next() {
		var e catalogtype.FieldLineageEdge
		var logic, notes sql.NullString
		if err := rows.Scan(&e.SourceDataset, &e.SourceField, &e.TargetDataset, &e.TargetField,
			&e.TransformationType, &logic, &e.Confidence, &e.Verified, &notes); err != nil {
			log.Printf("Warning: Failed to scan lineage edge row: %v", err)
			continue
		}
		e.TransformationLogic = logic.String
		e.Notes = notes.String
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineage edges: %w", err)
	}
	return edges, nil
}
