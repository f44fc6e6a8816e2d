package store

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableTaxa        = "taxa"
	tableAccessions  = "accessions"
	tableAssignments = "assignments"
)

// schemaTables declares the tables owned by the store. Migrate mutates the
// tables it is given, so each call builds a fresh set.
func schemaTables() []*schema.Table {
	taxa := schema.NewTable(tableTaxa).
		AddPrimary(&schema.Column{Name: "tax_id", Type: field.TypeInt64}).
		AddColumn(&schema.Column{Name: "parent_id", Type: field.TypeInt64}).
		AddColumn(&schema.Column{Name: "rank", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "name", Type: field.TypeString}).
		AddIndex("taxa_parent_id", false, []string{"parent_id"})

	accessions := schema.NewTable(tableAccessions).
		AddPrimary(&schema.Column{Name: "accession", Type: field.TypeInt64}).
		AddColumn(&schema.Column{Name: "tax_id", Type: field.TypeInt64})

	assignments := schema.NewTable(tableAssignments).
		AddPrimary(&schema.Column{Name: "run_id", Type: field.TypeString}).
		AddPrimary(&schema.Column{Name: "position", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "query_id", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "status", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "tax_id", Type: field.TypeInt64, Nullable: true}).
		AddColumn(&schema.Column{Name: "rank", Type: field.TypeString, Nullable: true}).
		AddColumn(&schema.Column{Name: "name", Type: field.TypeString, Nullable: true}).
		AddColumn(&schema.Column{Name: "hits_used", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "lifts", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "created_at", Type: field.TypeString})

	return []*schema.Table{taxa, accessions, assignments}
}

// migrate creates missing tables, columns and indexes. Existing data is kept.
func (s *Store) migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(entsql.OpenDB(s.dialect, s.db))
	if err != nil {
		return err
	}
	return m.Create(ctx, schemaTables()...)
}
