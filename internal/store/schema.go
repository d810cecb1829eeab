package store

import "fmt"

// dynamicSchema returns schema DDL using the configured embedding dimension
func dynamicSchema(embeddingDims int) []string {
	if embeddingDims <= 0 {
		embeddingDims = 4
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS datasets (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL COLLATE NOCASE UNIQUE,
        label TEXT,
        display_name TEXT,
        kind TEXT NOT NULL,
        source_system TEXT,
        source_url TEXT,
        record_count INTEGER NOT NULL DEFAULT 0,
        last_updated_at DATETIME,
        extras TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		`CREATE TABLE IF NOT EXISTS attributes (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        dataset_id INTEGER NOT NULL,
        label TEXT NOT NULL COLLATE NOCASE,
        definition TEXT,
        definition_source TEXT,
        data_type TEXT,
        nullable INTEGER NOT NULL DEFAULT 1,
        primary_key INTEGER NOT NULL DEFAULT 0,
        foreign_key INTEGER NOT NULL DEFAULT 0,
        max_length INTEGER NOT NULL DEFAULT 0,
        precision INTEGER NOT NULL DEFAULT 0,
        scale INTEGER NOT NULL DEFAULT 0,
        default_value TEXT,
        completeness_pct REAL,
        uniqueness_pct REAL,
        min_value TEXT,
        max_value TEXT,
        sample_values TEXT,
        last_profiled_at DATETIME,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (dataset_id, label),
        FOREIGN KEY (dataset_id) REFERENCES datasets(id)
    )`,

		`CREATE TABLE IF NOT EXISTS attribute_domain_values (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        attribute_id INTEGER NOT NULL,
        kind TEXT NOT NULL,
        description TEXT,
        value TEXT,
        value_definition TEXT,
        definition_source TEXT,
        codeset_name TEXT,
        codeset_source TEXT,
        range_min REAL,
        range_max REAL,
        units TEXT,
        FOREIGN KEY (attribute_id) REFERENCES attributes(id)
    )`,

		`CREATE TABLE IF NOT EXISTS field_lineage (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source_dataset TEXT NOT NULL COLLATE NOCASE,
        source_field TEXT NOT NULL COLLATE NOCASE,
        target_dataset TEXT NOT NULL COLLATE NOCASE,
        target_field TEXT NOT NULL COLLATE NOCASE,
        transformation_type TEXT NOT NULL,
        transformation_logic TEXT,
        confidence REAL NOT NULL DEFAULT 1.0,
        verified INTEGER NOT NULL DEFAULT 0,
        notes TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (source_dataset, source_field, target_dataset, target_field)
    )`,

		`CREATE TABLE IF NOT EXISTS dataset_relationships (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source_dataset TEXT NOT NULL COLLATE NOCASE,
        source_field TEXT NOT NULL COLLATE NOCASE,
        target_dataset TEXT NOT NULL COLLATE NOCASE,
        target_field TEXT NOT NULL COLLATE NOCASE,
        relationship_type TEXT NOT NULL,
        name TEXT,
        enforced INTEGER NOT NULL DEFAULT 0,
        cardinality TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (source_dataset, source_field, target_dataset, target_field)
    )`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
        id TEXT PRIMARY KEY,
        dataset TEXT COLLATE NOCASE,
        kind TEXT NOT NULL,
        content TEXT NOT NULL,
        keywords TEXT,
        embedding F32_BLOB(%d),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`, embeddingDims),

		`CREATE INDEX IF NOT EXISTS idx_datasets_kind ON datasets(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_attributes_dataset ON attributes(dataset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_domain_values_attribute ON attribute_domain_values(attribute_id)`,
		`CREATE INDEX IF NOT EXISTS idx_lineage_source ON field_lineage(source_dataset, source_field)`,
		`CREATE INDEX IF NOT EXISTS idx_lineage_target ON field_lineage(target_dataset, target_field)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_source ON dataset_relationships(source_dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_target ON dataset_relationships(target_dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_dataset ON chunks(dataset)`,

		// Vector index for similarity search
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks(libsql_vector_idx(embedding))`,
	}
}

// ftsSchema keeps a contentless-sync FTS5 index over chunk text and
// keywords. Applied only after the FTS5 capability probe succeeds.
func ftsSchema() []string {
	return []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(content, keywords, id UNINDEXED)`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_insert AFTER INSERT ON chunks BEGIN
            INSERT INTO fts_chunks (content, keywords, id) VALUES (new.content, coalesce(new.keywords, ''), new.id);
        END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_delete AFTER DELETE ON chunks BEGIN
            DELETE FROM fts_chunks WHERE id = old.id;
        END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_update AFTER UPDATE OF content, keywords ON chunks BEGIN
            DELETE FROM fts_chunks WHERE id = old.id;
            INSERT INTO fts_chunks (content, keywords, id) VALUES (new.content, coalesce(new.keywords, ''), new.id);
        END`,
	}
}
