package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
)

// UpsertDataset creates or updates a dataset and its attributes in one
// transaction. Existing attributes are matched by label and overwritten;
// domain values are replaced wholesale. Returns the canonical dataset
// name.
func (s *Store) UpsertDataset(ctx context.Context, d catalogtype.Dataset, attrs []catalogtype.Attribute) (string, error) {
	done := metrics.TimeOp("db_upsert_dataset")
	success := false
	defer func() { done(success) }()

	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = catalogtype.ShortName(d.Label)
	}
	if name == "" {
		return "", fmt.Errorf("%w: dataset name must be a non-empty string", catalogtype.ErrValidation)
	}
	if d.Kind == "" {
		d.Kind = catalogtype.KindTabular
	}
	if d.RecordCount < 0 {
		return "", fmt.Errorf("%w: dataset %q record count cannot be negative", catalogtype.ErrValidation, name)
	}
	for _, a := range attrs {
		if strings.TrimSpace(a.Label) == "" {
			return "", fmt.Errorf("%w: attribute label must be a non-empty string for dataset %q", catalogtype.ErrValidation, name)
		}
		for _, dv := range a.DomainValues {
			if err := dv.Validate(); err != nil {
				return "", fmt.Errorf("attribute %q of dataset %q: %w", a.Label, name, err)
			}
		}
	}

	err := withRetry(ctx, "upsert_dataset", func() error {
		return s.upsertDatasetTx(ctx, name, d, attrs)
	})
	if err != nil {
		return "", err
	}
	success = true
	return name, nil
}

func (s *Store) upsertDatasetTx(ctx context.Context, name string, d catalogtype.Dataset, attrs []catalogtype.Attribute) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for dataset %q: %w", name, err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	var extras any
	if len(d.Extras) > 0 {
		b, mErr := json.Marshal(d.Extras)
		if mErr != nil {
			return fmt.Errorf("failed to encode extras for dataset %q: %w", name, mErr)
		}
		extras = string(b)
	}

	result, err := tx.ExecContext(ctx, `UPDATE datasets
        SET label = ?, display_name = ?, kind = ?, source_system = ?, source_url = ?,
            record_count = ?, last_updated_at = ?, extras = ?
        WHERE name = ?`,
		d.Label, d.DisplayName, d.Kind, d.SourceSystem, d.SourceURL,
		d.RecordCount, d.LastUpdatedAt, extras, name)
	if err != nil {
		return fmt.Errorf("failed to update dataset %q: %w", name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update: %w", err)
	}
	if rowsAffected == 0 {
		if _, err = tx.ExecContext(ctx, `INSERT INTO datasets
            (name, label, display_name, kind, source_system, source_url, record_count, last_updated_at, extras)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			name, d.Label, d.DisplayName, d.Kind, d.SourceSystem, d.SourceURL,
			d.RecordCount, d.LastUpdatedAt, extras); err != nil {
			return fmt.Errorf("failed to insert dataset %q: %w", name, err)
		}
	}

	var datasetID int64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM datasets WHERE name = ?", name).Scan(&datasetID); err != nil {
		return fmt.Errorf("failed to read back dataset %q: %w", name, err)
	}

	for _, a := range attrs {
		if err = s.upsertAttributeTx(ctx, tx, datasetID, name, a); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) upsertAttributeTx(ctx context.Context, tx *sql.Tx, datasetID int64, datasetName string, a catalogtype.Attribute) error {
	var sampleValues, lastProfiled any
	var completeness, uniqueness any
	var minValue, maxValue any
	if q := a.Quality; q != nil {
		completeness = q.CompletenessPercent
		uniqueness = q.UniquenessPercent
		minValue = q.MinValue
		maxValue = q.MaxValue
		lastProfiled = q.LastProfiledAt
		if len(q.SampleValues) > 0 {
			b, err := json.Marshal(q.SampleValues)
			if err != nil {
				return fmt.Errorf("failed to encode sample values for %s.%s: %w", datasetName, a.Label, err)
			}
			sampleValues = string(b)
		}
	}

	result, err := tx.ExecContext(ctx, `UPDATE attributes
        SET definition = ?, definition_source = ?, data_type = ?, nullable = ?,
            primary_key = ?, foreign_key = ?, max_length = ?, precision = ?, scale = ?,
            default_value = ?, completeness_pct = ?, uniqueness_pct = ?,
            min_value = ?, max_value = ?, sample_values = ?, last_profiled_at = ?
        WHERE dataset_id = ? AND label = ?`,
		a.Definition, a.DefinitionSource, a.DataType, a.Nullable,
		a.PrimaryKey, a.ForeignKey, a.MaxLength, a.Precision, a.Scale,
		a.DefaultValue, completeness, uniqueness,
		minValue, maxValue, sampleValues, lastProfiled,
		datasetID, a.Label)
	if err != nil {
		return fmt.Errorf("failed to update attribute %s.%s: %w", datasetName, a.Label, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for attribute update: %w", err)
	}
	if rowsAffected == 0 {
		if _, err = tx.ExecContext(ctx, `INSERT INTO attributes
            (dataset_id, label, definition, definition_source, data_type, nullable,
             primary_key, foreign_key, max_length, precision, scale, default_value,
             completeness_pct, uniqueness_pct, min_value, max_value, sample_values, last_profiled_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			datasetID, a.Label, a.Definition, a.DefinitionSource, a.DataType, a.Nullable,
			a.PrimaryKey, a.ForeignKey, a.MaxLength, a.Precision, a.Scale, a.DefaultValue,
			completeness, uniqueness, minValue, maxValue, sampleValues, lastProfiled); err != nil {
			return fmt.Errorf("failed to insert attribute %s.%s: %w", datasetName, a.Label, err)
		}
	}

	var attributeID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM attributes WHERE dataset_id = ? AND label = ?", datasetID, a.Label).Scan(&attributeID); err != nil {
		return fmt.Errorf("failed to read back attribute %s.%s: %w", datasetName, a.Label, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM attribute_domain_values WHERE attribute_id = ?", attributeID); err != nil {
		return fmt.Errorf("failed to clear domain values for %s.%s: %w", datasetName, a.Label, err)
	}
	for _, dv := range a.DomainValues {
		spec := catalogtype.SpecFromDomainValue(dv)
		if _, err := tx.ExecContext(ctx, `INSERT INTO attribute_domain_values
            (attribute_id, kind, description, value, value_definition, definition_source,
             codeset_name, codeset_source, range_min, range_max, units)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			attributeID, string(spec.Kind), spec.Description, spec.Value, spec.ValueDefinition,
			spec.DefinitionSource, spec.CodesetName, spec.CodesetSource, spec.Min, spec.Max, spec.Units); err != nil {
			return fmt.Errorf("failed to insert domain value for %s.%s: %w", datasetName, a.Label, err)
		}
	}
	return nil
}

// FindDataset returns the dataset whose name matches exactly
// (case-insensitive), or ErrNotFound.
func (s *Store) FindDataset(ctx context.Context, name string) (*catalogtype.Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: dataset name cannot be empty", catalogtype.ErrInvalidArgument)
	}
	stmt, err := s.getPreparedStmt(ctx, `SELECT id, name, label, display_name, kind,
        source_system, source_url, record_count, last_updated_at, extras
        FROM datasets WHERE name = ?`)
	if err != nil {
		return nil, err
	}
	d, err := scanDataset(stmt.QueryRowContext(ctx, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dataset %q", catalogtype.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up dataset %q: %w", name, err)
	}
	return d, nil
}

// ResolveDataset finds a dataset by exact name first, then by fuzzy
// trigram match against known names and display names, keeping the max
// per candidate. An exact match always wins; a fuzzy match must clear
// the configured threshold. Ties go to the lexicographically smaller
// name so resolution stays deterministic.
func (s *Store) ResolveDataset(ctx context.Context, name string) (*catalogtype.Dataset, error) {
	d, err := s.FindDataset(ctx, name)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, catalogtype.ErrNotFound) {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name, display_name FROM datasets")
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset names: %w", err)
	}
	defer rows.Close()

	threshold := s.config.FuzzyThreshold
	if threshold <= 0 {
		threshold = fuzzyMatchThreshold
	}
	best := ""
	bestScore := 0.0
	for rows.Next() {
		var candidate string
		var displayName sql.NullString
		if err := rows.Scan(&candidate, &displayName); err != nil {
			log.Printf("Warning: Failed to scan dataset name row: %v", err)
			continue
		}
		score := trigramSimilarity(name, candidate)
		if ds := trigramSimilarity(name, displayName.String); ds > score {
			score = ds
		}
		if score > bestScore || (score == bestScore && score > 0 && candidate < best) {
			best = candidate
			bestScore = score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dataset names: %w", err)
	}
	if bestScore < threshold {
		return nil, fmt.Errorf("%w: dataset %q", catalogtype.ErrNotFound, name)
	}
	return s.FindDataset(ctx, best)
}

// ListDatasets returns dataset summaries ordered by name, optionally
// filtered by kind and source system. A positive limit caps the result.
func (s *Store) ListDatasets(ctx context.Context, kind, system string, limit int) ([]catalogtype.DatasetSummary, error) {
	done := metrics.TimeOp("db_list_datasets")
	success := false
	defer func() { done(success) }()

	query := `SELECT name, display_name, kind, source_system, record_count FROM datasets`
	where := []string{}
	args := []any{}
	if kind != "" {
		where = append(where, "kind = ?")
		args = append(args, kind)
	}
	if system != "" {
		where = append(where, "source_system = ?")
		args = append(args, system)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	summaries := []catalogtype.DatasetSummary{}
	for rows.Next() {
		var d catalogtype.DatasetSummary
		var displayName, sourceSystem sql.NullString
		if err := rows.Scan(&d.Name, &displayName, &d.Kind, &sourceSystem, &d.RecordCount); err != nil {
			log.Printf("Warning: Failed to scan dataset summary row: %v", err)
			continue
		}
		d.DisplayName = displayName.String
		d.SourceSystem = sourceSystem.String
		summaries = append(summaries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dataset summaries: %w", err)
	}
	success = true
	return summaries, nil
}

// DeleteDataset removes a dataset and everything hanging off it: its
// attributes and their domain values, lineage and relationship edges
// touching it, and chunks tagged with it. The name must match exactly;
// deletion never resolves fuzzily.
func (s *Store) DeleteDataset(ctx context.Context, name string) error {
	done := metrics.TimeOp("db_delete_dataset")
	success := false
	defer func() { done(success) }()

	d, err := s.FindDataset(ctx, name)
	if err != nil {
		return err
	}

	err = withRetry(ctx, "delete_dataset", func() error {
		return s.deleteDatasetTx(ctx, d)
	})
	if err != nil {
		return err
	}
	success = true
	return nil
}

func (s *Store) deleteDatasetTx(ctx context.Context, d *catalogtype.Dataset) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for dataset delete: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM attribute_domain_values
        WHERE attribute_id IN (SELECT id FROM attributes WHERE dataset_id = ?)`, d.ID); err != nil {
		return fmt.Errorf("failed to delete domain values for %q: %w", d.Name, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM attributes WHERE dataset_id = ?", d.ID); err != nil {
		return fmt.Errorf("failed to delete attributes for %q: %w", d.Name, err)
	}
	if _, err = tx.ExecContext(ctx,
		"DELETE FROM field_lineage WHERE source_dataset = ? OR target_dataset = ?", d.Name, d.Name); err != nil {
		return fmt.Errorf("failed to delete lineage edges for %q: %w", d.Name, err)
	}
	if _, err = tx.ExecContext(ctx,
		"DELETE FROM dataset_relationships WHERE source_dataset = ? OR target_dataset = ?", d.Name, d.Name); err != nil {
		return fmt.Errorf("failed to delete relationship edges for %q: %w", d.Name, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM chunks WHERE dataset = ?", d.Name); err != nil {
		return fmt.Errorf("failed to delete chunks for %q: %w", d.Name, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", d.ID); err != nil {
		return fmt.Errorf("failed to delete dataset %q: %w", d.Name, err)
	}
	return tx.Commit()
}

// GetSchema returns the full structured view of one dataset: attributes
// ordered primary keys first, each with its domain values.
func (s *Store) GetSchema(ctx context.Context, name string) (*catalogtype.DatasetSchema, error) {
	done := metrics.TimeOp("db_get_schema")
	success := false
	defer func() { done(success) }()

	d, err := s.ResolveDataset(ctx, name)
	if err != nil {
		return nil, err
	}

	attrs, err := s.getAttributes(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	success = true
	return &catalogtype.DatasetSchema{Dataset: *d, Attributes: attrs}, nil
}

func (s *Store) getAttributes(ctx context.Context, datasetID int64) ([]catalogtype.Attribute, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, dataset_id, label, definition, definition_source,
        data_type, nullable, primary_key, foreign_key, max_length, precision, scale, default_value,
        completeness_pct, uniqueness_pct, min_value, max_value, sample_values, last_profiled_at
        FROM attributes WHERE dataset_id = ?
        ORDER BY primary_key DESC, id ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer rows.Close()

	attrs := []catalogtype.Attribute{}
	byID := map[int64]int{}
	for rows.Next() {
		var a catalogtype.Attribute
		var definition, defSource, dataType, defaultValue sql.NullString
		var completeness, uniqueness sql.NullFloat64
		var minValue, maxValue, sampleValues sql.NullString
		var lastProfiled sql.NullTime
		if err := rows.Scan(&a.ID, &a.DatasetID, &a.Label, &definition, &defSource,
			&dataType, &a.Nullable, &a.PrimaryKey, &a.ForeignKey, &a.MaxLength, &a.Precision, &a.Scale, &defaultValue,
			&completeness, &uniqueness, &minValue, &maxValue, &sampleValues, &lastProfiled); err != nil {
			log.Printf("Warning: Failed to scan attribute row: %v", err)
			continue
		}
		a.Definition = definition.String
		a.DefinitionSource = defSource.String
		a.DataType = dataType.String
		a.DefaultValue = defaultValue.String
		if completeness.Valid || uniqueness.Valid || minValue.Valid || maxValue.Valid || sampleValues.Valid || lastProfiled.Valid {
			q := &catalogtype.QualitySnapshot{
				CompletenessPercent: completeness.Float64,
				UniquenessPercent:   uniqueness.Float64,
				MinValue:            minValue.String,
				MaxValue:            maxValue.String,
			}
			if sampleValues.Valid && sampleValues.String != "" {
				if err := json.Unmarshal([]byte(sampleValues.String), &q.SampleValues); err != nil {
					log.Printf("Warning: Failed to decode sample values for attribute %q: %v", a.Label, err)
				}
			}
			if lastProfiled.Valid {
				t := lastProfiled.Time
				q.LastProfiledAt = &t
			}
			a.Quality = q
		}
		byID[a.ID] = len(attrs)
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute rows: %w", err)
	}

	if err := s.attachDomainValues(ctx, datasetID, attrs, byID); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (s *Store) attachDomainValues(ctx context.Context, datasetID int64, attrs []catalogtype.Attribute, byID map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT dv.attribute_id, dv.kind, dv.description, dv.value,
        dv.value_definition, dv.definition_source, dv.codeset_name, dv.codeset_source,
        dv.range_min, dv.range_max, dv.units
        FROM attribute_domain_values dv
        JOIN attributes a ON a.id = dv.attribute_id
        WHERE a.dataset_id = ?
        ORDER BY dv.id ASC`, datasetID)
	if err != nil {
		return fmt.Errorf("failed to query domain values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var attrID int64
		var spec catalogtype.DomainValueSpec
		var kind string
		var description, value, valueDef, defSource, codesetName, codesetSource, units sql.NullString
		var rangeMin, rangeMax sql.NullFloat64
		if err := rows.Scan(&attrID, &kind, &description, &value, &valueDef, &defSource,
			&codesetName, &codesetSource, &rangeMin, &rangeMax, &units); err != nil {
			log.Printf("Warning: Failed to scan domain value row: %v", err)
			continue
		}
		spec.Kind = catalogtype.DomainKind(kind)
		spec.Description = description.String
		spec.Value = value.String
		spec.ValueDefinition = valueDef.String
		spec.DefinitionSource = defSource.String
		spec.CodesetName = codesetName.String
		spec.CodesetSource = codesetSource.String
		spec.Units = units.String
		if rangeMin.Valid {
			v := rangeMin.Float64
			spec.Min = &v
		}
		if rangeMax.Valid {
			v := rangeMax.Float64
			spec.Max = &v
		}
		dv, err := spec.ToDomainValue()
		if err != nil {
			log.Printf("Warning: Skipping stored domain value of kind %q: %v", kind, err)
			continue
		}
		if idx, ok := byID[attrID]; ok {
			attrs[idx].DomainValues = append(attrs[idx].DomainValues, dv)
		}
	}
	return rows.Err()
}

// attributeExists reports whether the (dataset, field) pair is known.
func (s *Store) attributeExists(ctx context.Context, dataset, field string) (bool, error) {
	stmt, err := s.getPreparedStmt(ctx, `SELECT 1 FROM attributes a
        JOIN datasets d ON d.id = a.dataset_id
        WHERE d.name = ? AND a.label = ?`)
	if err != nil {
		return false, err
	}
	var one int
	err = stmt.QueryRowContext(ctx, dataset, field).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check field %s.%s: %w", dataset, field, err)
	}
	return true, nil
}

// resolveAttribute finds a field on one dataset by exact label first,
// then by fuzzy trigram match over the dataset's labels, mirroring
// ResolveDataset. Returns the stored label.
func (s *Store) resolveAttribute(ctx context.Context, dataset, field string) (string, error) {
	ok, err := s.attributeExists(ctx, dataset, field)
	if err != nil {
		return "", err
	}
	if ok {
		return field, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT a.label FROM attributes a
        JOIN datasets d ON d.id = a.dataset_id
        WHERE d.name = ?`, dataset)
	if err != nil {
		return "", fmt.Errorf("failed to list attribute labels for %q: %w", dataset, err)
	}
	defer rows.Close()

	threshold := s.config.FuzzyThreshold
	if threshold <= 0 {
		threshold = fuzzyMatchThreshold
	}
	best := ""
	bestScore := 0.0
	for rows.Next() {
		var candidate string
		if err := rows.Scan(&candidate); err != nil {
			log.Printf("Warning: Failed to scan attribute label row: %v", err)
			continue
		}
		score := trigramSimilarity(field, candidate)
		if score > bestScore || (score == bestScore && score > 0 && candidate < best) {
			best = candidate
			bestScore = score
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating attribute labels: %w", err)
	}
	if bestScore < threshold {
		return "", fmt.Errorf("%w: field %s.%s", catalogtype.ErrNotFound, dataset, field)
	}
	return best, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*catalogtype.Dataset, error) {
	var d catalogtype.Dataset
	var label, displayName, sourceSystem, sourceURL, extras sql.NullString
	var lastUpdated sql.NullTime
	if err := row.Scan(&d.ID, &d.Name, &label, &displayName, &d.Kind,
		&sourceSystem, &sourceURL, &d.RecordCount, &lastUpdated, &extras); err != nil {
		return nil, err
	}
	d.Label = label.String
	d.DisplayName = displayName.String
	d.SourceSystem = sourceSystem.String
	d.SourceURL = sourceURL.String
	if lastUpdated.Valid {
		t := lastUpdated.Time
		d.LastUpdatedAt = &t
	}
	if extras.Valid && extras.String != "" {
		if err := json.Unmarshal([]byte(extras.String), &d.Extras); err != nil {
			log.Printf("Warning: Failed to decode extras for dataset %q: %v", d.Name, err)
		}
	}
	return &d, nil
}
