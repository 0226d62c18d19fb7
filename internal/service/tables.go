package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// TableResult is a table mutation plus the mirror outcome for its creator.
type TableResult struct {
	Table  domain.DynamicTable `json:"table"`
	Mirror domain.MirrorReport `json:"mirror"`
}

// CreateTable sanitizes the names, creates the relation and records it in the
// catalog. The relation is created without IF NOT EXISTS, so when two callers
// race past the checks below only one gets it and the other a
// DuplicateIdentifier. If the catalog write fails the new relation is dropped
// again.
func (e *Engine) CreateTable(ctx context.Context, actor domain.Account, displayName, description string, specs []core.FieldSpec) (TableResult, error) {
	result := TableResult{Mirror: domain.NewMirrorReport()}
	if err := e.requireCreator(ctx, actor, "creating tables"); err != nil {
		return result, err
	}

	name, fields, err := core.NormalizeTableSpec(displayName, specs)
	if err != nil {
		return result, err
	}

	if _, err := e.catalog.Get(ctx, name); err == nil {
		return result, domain.DuplicateIdentifier(name)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return result, err
	}
	exists, err := e.schema.TableExists(ctx, name)
	if err != nil {
		return result, err
	}
	if exists {
		return result, domain.DuplicateIdentifier(name)
	}

	if err := e.schema.CreateTable(ctx, name, fields); err != nil {
		return result, err
	}

	createdBy := actor.ID
	table := domain.DynamicTable{
		InternalName: name,
		DisplayName:  strings.TrimSpace(displayName),
		Description:  strings.TrimSpace(description),
		Fields:       fields,
		Status:       domain.StatusActive,
		CreatedBy:    &createdBy,
	}
	if err := e.catalog.Insert(ctx, &table); err != nil {
		customLog.Warnf("Engine: Catalog write for %s failed, dropping relation: %v", name, err)
		if dropErr := e.schema.DropTable(ctx, name); dropErr != nil {
			customLog.Errorf("Engine: Compensating drop of %s failed, relation is orphaned: %v", name, dropErr)
		}
		return result, err
	}
	customLog.Printf("Engine: Table %s created by %s with %d field(s)", name, actor.Username, len(fields))
	result.Table = table

	report, err := e.perms.ProvisionCreator(ctx, actor, name)
	if err != nil {
		return result, fmt.Errorf("table %s created but creator provisioning failed: %w", name, err)
	}
	result.Mirror = report
	return result, nil
}

// AddField appends one column to a table. A column already present in the
// catalog or in the live relation is a ColumnConflict.
func (e *Engine) AddField(ctx context.Context, actor domain.Account, tableName string, spec core.FieldSpec) (domain.DynamicTable, error) {
	table, err := e.loadTable(ctx, actor, tableName, true)
	if err != nil {
		return domain.DynamicTable{}, err
	}
	if err := e.requireCreator(ctx, actor, "adding fields"); err != nil {
		return domain.DynamicTable{}, err
	}

	field, err := core.NormalizeField(spec)
	if err != nil {
		return domain.DynamicTable{}, err
	}
	if _, exists := table.FieldByName(field.Name); exists {
		return domain.DynamicTable{}, domain.ColumnConflict(table.InternalName, field.Name)
	}

	if err := e.schema.AddColumn(ctx, table.InternalName, field); err != nil {
		return domain.DynamicTable{}, err
	}
	if err := e.catalog.AppendField(ctx, table.InternalName, field); err != nil {
		return domain.DynamicTable{}, err
	}
	customLog.Printf("Engine: Field %s (%s) added to %s by %s", field.Name, field.Type, table.InternalName, actor.Username)
	return e.catalog.Get(ctx, table.InternalName)
}

// UpdateTable changes the display name and description of a table. The
// internal name and fields are immutable here. Same authority as AddField.
// A field appended concurrently can be overwritten by the catalog write; its
// column stays in the relation and the next reconcile adopts it again.
func (e *Engine) UpdateTable(ctx context.Context, actor domain.Account, tableName, displayName, description string) (domain.DynamicTable, error) {
	table, err := e.loadTable(ctx, actor, tableName, true)
	if err != nil {
		return domain.DynamicTable{}, err
	}
	if err := e.requireCreator(ctx, actor, "editing tables"); err != nil {
		return domain.DynamicTable{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.DynamicTable{}, domain.InvalidInput("display_name", "table name is required")
	}

	table.DisplayName = displayName
	table.Description = strings.TrimSpace(description)
	if err := e.catalog.Upsert(ctx, &table); err != nil {
		return domain.DynamicTable{}, err
	}
	customLog.Printf("Engine: Table %s renamed to %q by %s", table.InternalName, displayName, actor.Username)
	return table, nil
}

// SetTableStatus soft-deletes or reactivates a table. Admin only.
func (e *Engine) SetTableStatus(ctx context.Context, actor domain.Account, tableName string, status domain.Status) error {
	if err := requireAdmin(actor, "changing table status"); err != nil {
		return err
	}
	if !status.Valid() {
		return domain.InvalidInput(string(status), "status must be active or inactive")
	}
	if _, err := e.loadTable(ctx, actor, tableName, false); err != nil {
		return err
	}
	if err := e.catalog.SetStatus(ctx, tableName, status); err != nil {
		return err
	}
	customLog.Printf("Engine: Table %s set to %s by %s", tableName, status, actor.Username)
	return nil
}

// ListTables summarizes every table the actor may see, with its row count and
// the actor's effective flags.
func (e *Engine) ListTables(ctx context.Context, actor domain.Account) ([]domain.TableSummary, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	tables, err := e.perms.ListAccessibleTables(ctx, actor)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.TableSummary, 0, len(tables))
	for _, t := range tables {
		count, err := e.records.Count(ctx, t.InternalName)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			customLog.Warnf("Engine: Catalog entry %s has no relation", t.InternalName)
		}
		flags, err := e.perms.EffectiveFlags(ctx, actor, t.InternalName)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.TableSummary{
			InternalName: t.InternalName,
			DisplayName:  t.DisplayName,
			Fields:       t.Fields,
			Status:       t.Status,
			RowCount:     count,
			Permissions:  flags,
		})
	}
	return summaries, nil
}

// DescribeTable returns the reconciled catalog entry. Requires can_view.
func (e *Engine) DescribeTable(ctx context.Context, actor domain.Account, tableName string) (domain.DynamicTable, error) {
	return e.authorizeTable(ctx, actor, tableName, domain.VerbView, true)
}
