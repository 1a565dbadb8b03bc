package catalog

// store.go loads attribute metadata from the catalog's EAV tables and
// persists options created during an import.
//
// Attribute types are derived the same way the import framework does it:
// the frontend input wins for option-backed inputs (select, multiselect,
// boolean), otherwise the backend storage type decides.

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// booleanLabels are the options every boolean attribute accepts.
var booleanLabels = []string{"yes", "no"}

const loadAttributesSQL = `
SELECT a.attribute_code,
       COALESCE(a.frontend_input, ''),
       COALESCE(a.backend_type, ''),
       a.is_required,
       a.is_unique,
       COALESCE(a.apply_to, '')
FROM eav_attribute a
JOIN eav_entity_type t ON t.entity_type_id = a.entity_type_id
WHERE t.entity_type_code = $1`

const loadOptionsSQL = `
SELECT a.attribute_code, v.value
FROM eav_attribute_option o
JOIN eav_attribute_option_value v ON v.option_id = o.option_id AND v.store_id = 0
JOIN eav_attribute a ON a.attribute_id = o.attribute_id
JOIN eav_entity_type t ON t.entity_type_id = a.entity_type_id
WHERE t.entity_type_code = $1`

// addOptionSQL inserts the option, its admin-scope label and, when requested,
// makes it the attribute default, in one statement.
const addOptionSQL = `
WITH attr AS (
    SELECT a.attribute_id
    FROM eav_attribute a
    JOIN eav_entity_type t ON t.entity_type_id = a.entity_type_id
    WHERE t.entity_type_code = $1 AND a.attribute_code = $2
), opt AS (
    INSERT INTO eav_attribute_option (attribute_id, sort_order)
    SELECT attribute_id, $3 FROM attr
    RETURNING option_id, attribute_id
), label AS (
    INSERT INTO eav_attribute_option_value (option_id, store_id, value)
    SELECT option_id, 0, $4 FROM opt
), def AS (
    UPDATE eav_attribute SET default_value = opt.option_id::text
    FROM opt
    WHERE $5 AND eav_attribute.attribute_id = opt.attribute_id
)
SELECT option_id FROM opt`

// ErrAttributeNotFound is returned when an option targets an unknown attribute.
var ErrAttributeNotFound = errors.New("attribute not found")

// PgStore reads and writes attribute metadata in PostgreSQL.
type PgStore struct {
	db DBTX
}

// NewPgStore creates a store on top of a pool or transaction.
func NewPgStore(db DBTX) *PgStore {
	return &PgStore{db: db}
}

// AttributeTypeOf maps the stored input and backend types to an AttributeType.
func AttributeTypeOf(frontendInput, backendType string) AttributeType {
	switch frontendInput {
	case "select":
		return TypeSelect
	case "multiselect":
		return TypeMultiselect
	case "boolean":
		return TypeBoolean
	}
	if backendType == "static" {
		return TypeVarchar
	}
	return AttributeType(backendType)
}

// LoadSchema loads every attribute of entityType together with its known options.
func (s *PgStore) LoadSchema(ctx context.Context, entityType string) (Schema, error) {
	rows, err := s.db.Query(ctx, loadAttributesSQL, entityType)
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", err)
	}
	defer rows.Close()

	schema := make(Schema)
	for rows.Next() {
		var (
			code, input, backend, applyTo string
			required, unique              bool
		)
		if err := rows.Scan(&code, &input, &backend, &required, &unique, &applyTo); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		p := AttributeParams{
			Code:       code,
			Type:       AttributeTypeOf(input, backend),
			IsRequired: required,
			ApplyTo:    parseApplyTo(applyTo),
			Options:    make(OptionSet),
			IsUnique:   unique,
		}
		if p.Type == TypeBoolean {
			p.Options = NewOptionSet(booleanLabels...)
		}
		schema[code] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}

	if err := s.loadOptions(ctx, entityType, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func (s *PgStore) loadOptions(ctx context.Context, entityType string, schema Schema) error {
	rows, err := s.db.Query(ctx, loadOptionsSQL, entityType)
	if err != nil {
		return fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code, label string
		if err := rows.Scan(&code, &label); err != nil {
			return fmt.Errorf("scan option: %w", err)
		}
		if p, ok := schema[code]; ok {
			p.Options.Add(NormalizeLabel(label))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read options: %w", err)
	}
	return nil
}

// OptionCreator returns an OptionCreator bound to entityType.
func (s *PgStore) OptionCreator(entityType string) OptionCreator {
	return entityOptions{store: s, entityType: entityType}
}

// AddOption persists opt for the attribute and returns the new option id.
func (s *PgStore) AddOption(ctx context.Context, entityType, attrCode string, opt Option) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, addOptionSQL, entityType, attrCode, opt.SortOrder, opt.Label, opt.IsDefault).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("add option %q to %s: %w", opt.Label, attrCode, ErrAttributeNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("add option %q to %s: %w", opt.Label, attrCode, err)
	}
	return id, nil
}

type entityOptions struct {
	store      *PgStore
	entityType string
}

func (e entityOptions) AddOption(ctx context.Context, attrCode string, opt Option) error {
	_, err := e.store.AddOption(ctx, e.entityType, attrCode, opt)
	return err
}
