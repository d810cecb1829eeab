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

var validRelationshipTypes = map[string]bool{
	catalogtype.RelOneToOne:   true,
	catalogtype.RelOneToMany:  true,
	catalogtype.RelManyToMany: true,
}

// AddRelationships records directed reference edges between existing
// fields, upserting on the endpoint tuple. Each edge is validated
// (known relationship type, both endpoint fields present in the
// catalog) before anything is written.
func (s *Store) AddRelationships(ctx context.Context, edges []catalogtype.RelationshipEdge) error {
	done := metrics.TimeOp("db_add_relationships")
	success := false
	defer func() { done(success) }()

	for _, e := range edges {
		if strings.TrimSpace(e.SourceDataset) == "" || strings.TrimSpace(e.SourceField) == "" ||
			strings.TrimSpace(e.TargetDataset) == "" || strings.TrimSpace(e.TargetField) == "" {
			return fmt.Errorf("%w: relationship edge endpoints must be non-empty", catalogtype.ErrValidation)
		}
		if !validRelationshipTypes[e.RelationshipType] {
			return fmt.Errorf("%w: unknown relationship type %q", catalogtype.ErrValidation, e.RelationshipType)
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
	}

	err := withRetry(ctx, "add_relationships", func() error {
		return s.addRelationshipsTx(ctx, edges)
	})
	if err != nil {
		return err
	}
	success = true
	return nil
}

func (s *Store) addRelationshipsTx(ctx context.Context, edges []catalogtype.RelationshipEdge) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for relationship edges: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, e := range edges {
		result, uErr := tx.ExecContext(ctx, `UPDATE dataset_relationships
            SET relationship_type = ?, name = ?, enforced = ?, cardinality = ?
            WHERE source_dataset = ? AND source_field = ? AND target_dataset = ? AND target_field = ?`,
			e.RelationshipType, e.Name, e.Enforced, e.Cardinality,
			e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField)
		if uErr != nil {
			return fmt.Errorf("failed to update relationship %s -> %s: %w", e.SourceDataset, e.TargetDataset, uErr)
		}
		rowsAffected, raErr := result.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("failed to get rows affected for relationship update: %w", raErr)
		}
		if rowsAffected == 0 {
			if _, iErr := tx.ExecContext(ctx, `INSERT INTO dataset_relationships
                (source_dataset, source_field, target_dataset, target_field,
                 relationship_type, name, enforced, cardinality)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField,
				e.RelationshipType, e.Name, e.Enforced, e.Cardinality); iErr != nil {
				return fmt.Errorf("failed to insert relationship %s -> %s: %w", e.SourceDataset, e.TargetDataset, iErr)
			}
		}
	}
	return tx.Commit()
}

// DeleteRelationship removes one edge by its endpoint tuple.
func (s *Store) DeleteRelationship(ctx context.Context, e catalogtype.RelationshipEdge) error {
	done := metrics.TimeOp("db_delete_relationship")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(e.SourceDataset) == "" || strings.TrimSpace(e.SourceField) == "" ||
		strings.TrimSpace(e.TargetDataset) == "" || strings.TrimSpace(e.TargetField) == "" {
		return fmt.Errorf("%w: relationship edge endpoints must be non-empty", catalogtype.ErrValidation)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM dataset_relationships
        WHERE source_dataset = ? AND source_field = ? AND target_dataset = ? AND target_field = ?`,
		e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField)
	if err != nil {
		return fmt.Errorf("failed to delete relationship %s -> %s: %w", e.SourceDataset, e.TargetDataset, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for relationship delete: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: relationship %s.%s -> %s.%s", catalogtype.ErrNotFound,
			e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField)
	}
	success = true
	return nil
}

// GetRelationships returns the relationship edges touching one dataset,
// grouped by direction.
func (s *Store) GetRelationships(ctx context.Context, dataset string) (*catalogtype.RelationshipResult, error) {
	done := metrics.TimeOp("db_get_relationships")
	success := false
	defer func() { done(success) }()

	d, err := s.ResolveDataset(ctx, dataset)
	if err != nil {
		return nil, err
	}

	outgoing, err := s.queryRelationshipEdges(ctx, "WHERE source_dataset = ?", d.Name)
	if err != nil {
		return nil, err
	}
	incoming, err := s.queryRelationshipEdges(ctx, "WHERE target_dataset = ?", d.Name)
	if err != nil {
		return nil, err
	}

	success = true
	return &catalogtype.RelationshipResult{
		Dataset:  d.Name,
		Outgoing: outgoing,
		Incoming: incoming,
	}, nil
}

func (s *Store) queryRelationshipEdges(ctx context.Context, where string, args ...any) ([]catalogtype.RelationshipEdge, error) {
	query := `SELECT source_dataset, source_field, target_dataset, target_field,
        relationship_type, name, enforced, cardinality
        FROM dataset_relationships ` + where + ` ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationship edges: %w", err)
	}
	defer rows.Close()

	edges := []catalogtype.RelationshipEdge{}
	for rows.Next() {
		var e catalogtype.RelationshipEdge
		var name, cardinality sql.NullString
		if err := rows.Scan(&e.SourceDataset, &e.SourceField, &e.TargetDataset, &e.TargetField,
			&e.RelationshipType, &name, &e.Enforced, &cardinality); err != nil {
			log.Printf("Warning: Failed to scan relationship edge row: %v", err)
			continue
		}
		e.Name = name.String
		e.Cardinality = cardinality.String
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationship edges: %w", err)
	}
	return edges, nil
}
