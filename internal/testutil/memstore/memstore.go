// Package memstore is an in-memory stand-in for the PostgreSQL storage
// layer. It keeps the same observable semantics (not-found and conflict
// errors, additive reconcile, type-aware duplicate detection) so engine and
// API tests run without a database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

type liveTable struct {
	fields []domain.Field
	rows   map[int64]domain.Record
	nextID int64
}

type permKey struct {
	account int64
	table   string
}

// DB holds every relation in memory.
type DB struct {
	mu       sync.Mutex
	now      func() time.Time
	live     map[string]*liveTable
	catalog  map[string]domain.DynamicTable
	accounts map[int64]domain.Account
	nextAcct int64
	tperms   map[permKey]domain.TablePermission
	gperms   map[int64]domain.GeneralPermission
}

// New creates an empty database.
func New() *DB {
	return &DB{
		now:      time.Now,
		live:     map[string]*liveTable{},
		catalog:  map[string]domain.DynamicTable{},
		accounts: map[int64]domain.Account{},
		tperms:   map[permKey]domain.TablePermission{},
		gperms:   map[int64]domain.GeneralPermission{},
	}
}

func (db *DB) Schema() *Schema           { return &Schema{db} }
func (db *DB) Metadata() *Metadata       { return &Metadata{db} }
func (db *DB) Records() *Records         { return &Records{db} }
func (db *DB) Accounts() *Accounts       { return &Accounts{db} }
func (db *DB) Permissions() *Permissions { return &Permissions{db} }

// AddLiveColumn simulates an out-of-band ALTER TABLE.
func (db *DB) AddLiveColumn(table string, f domain.Field) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if lt, ok := db.live[table]; ok {
		lt.fields = append(lt.fields, f)
	}
}

// LiveFieldNames lists the columns of the live relation, for assertions.
func (db *DB) LiveFieldNames(table string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	lt, ok := db.live[table]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(lt.fields))
	for _, f := range lt.fields {
		names = append(names, f.Name)
	}
	return names
}

// TablePermissions returns every stored row for an account, for assertions.
func (db *DB) TablePermissions(accountID int64) []domain.TablePermission {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.listTablePermissions(accountID)
}

func (db *DB) listTablePermissions(accountID int64) []domain.TablePermission {
	out := make([]domain.TablePermission, 0)
	for k, p := range db.tperms {
		if k.account == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}

// --- Schema ---

// Schema implements the DDL contract.
type Schema struct{ db *DB }

func (s *Schema) CreateTable(_ context.Context, table string, fields []domain.Field) error {
	if !core.IsValidIdentifier(table) {
		return domain.InvalidInput(table, "invalid table identifier")
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.live[table]; ok {
		return domain.DuplicateIdentifier(table)
	}
	s.db.live[table] = &liveTable{fields: append([]domain.Field(nil), fields...), rows: map[int64]domain.Record{}}
	return nil
}

func (s *Schema) AddColumn(_ context.Context, table string, f domain.Field) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	lt, ok := s.db.live[table]
	if !ok {
		return domain.NotFound(table, "add column: relation or column does not exist")
	}
	for _, existing := range lt.fields {
		if existing.Name == f.Name {
			return domain.ColumnConflict(table, f.Name)
		}
	}
	lt.fields = append(lt.fields, domain.Field{Name: f.Name, Type: f.Type})
	return nil
}

func (s *Schema) DropTable(_ context.Context, table string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.live, table)
	return nil
}

func (s *Schema) TableExists(_ context.Context, table string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	_, ok := s.db.live[table]
	return ok, nil
}

// --- Metadata ---

// Metadata implements the catalog contract.
type Metadata struct{ db *DB }

func cloneTable(t domain.DynamicTable) domain.DynamicTable {
	t.Fields = append([]domain.Field{}, t.Fields...)
	return t
}

func (m *Metadata) Insert(_ context.Context, t *domain.DynamicTable) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.catalog[t.InternalName]; ok {
		return domain.DuplicateIdentifier(t.InternalName)
	}
	if t.Status == "" {
		t.Status = domain.StatusActive
	}
	t.CreatedAt = m.db.now()
	t.UpdatedAt = t.CreatedAt
	m.db.catalog[t.InternalName] = cloneTable(*t)
	return nil
}

func (m *Metadata) Upsert(_ context.Context, t *domain.DynamicTable) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if t.Status == "" {
		t.Status = domain.StatusActive
	}
	now := m.db.now()
	if existing, ok := m.db.catalog[t.InternalName]; ok {
		t.CreatedAt = existing.CreatedAt
		t.CreatedBy = existing.CreatedBy
	} else {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	m.db.catalog[t.InternalName] = cloneTable(*t)
	return nil
}

func (m *Metadata) Get(_ context.Context, name string) (domain.DynamicTable, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.catalog[name]
	if !ok {
		return domain.DynamicTable{}, domain.NotFound(name, "table not found")
	}
	return cloneTable(t), nil
}

func (m *Metadata) List(_ context.Context, includeInactive bool) ([]domain.DynamicTable, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]domain.DynamicTable, 0, len(m.db.catalog))
	for _, t := range m.db.catalog {
		if includeInactive || t.IsActive() {
			out = append(out, cloneTable(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].InternalName < out[j].InternalName
	})
	return out, nil
}

func (m *Metadata) SetStatus(_ context.Context, name string, status domain.Status) error {
	if !status.Valid() {
		return domain.InvalidInput(name, "invalid status %q", status)
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.catalog[name]
	if !ok {
		return domain.NotFound(name, "table not found")
	}
	t.Status = status
	t.UpdatedAt = m.db.now()
	m.db.catalog[name] = t
	return nil
}

func (m *Metadata) AppendField(_ context.Context, name string, f domain.Field) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.catalog[name]
	if !ok {
		return domain.NotFound(name, "table not found")
	}
	if _, exists := t.FieldByName(f.Name); exists {
		return nil
	}
	t.Fields = append(t.Fields, f)
	m.db.catalog[name] = t
	return nil
}

func (m *Metadata) Reconcile(_ context.Context, name string) ([]domain.Field, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.catalog[name]
	if !ok {
		return nil, domain.NotFound(name, "table not found")
	}
	lt, ok := m.db.live[name]
	if !ok {
		return nil, nil
	}
	var added []domain.Field
	for _, f := range lt.fields {
		if _, known := t.FieldByName(f.Name); known {
			continue
		}
		nf := domain.Field{Name: f.Name, Type: f.Type}
		t.Fields = append(t.Fields, nf)
		added = append(added, nf)
	}
	if len(added) > 0 {
		m.db.catalog[name] = t
	}
	return added, nil
}

// --- Records ---

// Records implements DML on dynamic tables.
type Records struct{ db *DB }

func (r *Records) table(name string) (*liveTable, error) {
	lt, ok := r.db.live[name]
	if !ok {
		return nil, domain.NotFound(name, "relation does not exist")
	}
	return lt, nil
}

func (r *Records) Insert(_ context.Context, table domain.DynamicTable, rec domain.Record) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.insert(table, rec)
}

func (r *Records) insert(table domain.DynamicTable, rec domain.Record) (int64, error) {
	lt, err := r.table(table.InternalName)
	if err != nil {
		return 0, err
	}
	if len(rec) == 0 {
		return 0, domain.InvalidInput(table.InternalName, "record has no values")
	}
	row := make(domain.Record, len(lt.fields))
	for _, f := range lt.fields {
		row[f.Name] = domain.Null()
	}
	for k, v := range rec {
		if _, ok := row[k]; !ok {
			return 0, domain.NotFound(table.InternalName, "insert record: relation or column does not exist")
		}
		row[k] = v
	}
	lt.nextID++
	lt.rows[lt.nextID] = row
	return lt.nextID, nil
}

func (r *Records) render(table domain.DynamicTable, id int64, row domain.Record) map[string]any {
	out := map[string]any{"id": id}
	for _, f := range table.Fields {
		v := row[f.Name]
		if v.Kind() == domain.KindDate {
			out[f.Name] = v.String()
			continue
		}
		out[f.Name] = v.Any()
	}
	return out
}

func (r *Records) Get(_ context.Context, table domain.DynamicTable, id int64) (map[string]any, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	lt, err := r.table(table.InternalName)
	if err != nil {
		return nil, err
	}
	row, ok := lt.rows[id]
	if !ok {
		return nil, domain.NotFound(fmt.Sprintf("%s/%d", table.InternalName, id), "record not found")
	}
	return r.render(table, id, row), nil
}

func (r *Records) Update(_ context.Context, table domain.DynamicTable, id int64, rec domain.Record) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	lt, err := r.table(table.InternalName)
	if err != nil {
		return err
	}
	row, ok := lt.rows[id]
	if !ok {
		return domain.NotFound(fmt.Sprintf("%s/%d", table.InternalName, id), "record not found")
	}
	for k, v := range rec {
		row[k] = v
	}
	return nil
}

func (r *Records) Delete(_ context.Context, table domain.DynamicTable, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	lt, err := r.table(table.InternalName)
	if err != nil {
		return err
	}
	if _, ok := lt.rows[id]; !ok {
		return domain.NotFound(fmt.Sprintf("%s/%d", table.InternalName, id), "record not found")
	}
	delete(lt.rows, id)
	return nil
}

func (r *Records) List(_ context.Context, table domain.DynamicTable, opts core.ListQueryOptions) (domain.RecordPage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	lt, err := r.table(table.InternalName)
	if err != nil {
		return domain.RecordPage{}, err
	}
	if opts.Limit < 1 {
		opts.Limit = core.DefaultLimit
	}
	if opts.Page < 1 {
		opts.Page = core.DefaultPage
	}

	ids := make([]int64, 0, len(lt.rows))
	needle := strings.ToLower(opts.Search)
	for id, row := range lt.rows {
		if needle != "" && !matches(table, row, needle) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		less := ids[i] < ids[j]
		if opts.SortBy != "" && opts.SortBy != "id" {
			a, b := lt.rows[ids[i]][opts.SortBy].String(), lt.rows[ids[j]][opts.SortBy].String()
			if a != b {
				less = a < b
			}
		}
		if opts.SortOrder == "desc" {
			return !less
		}
		return less
	})

	total := int64(len(ids))
	page := domain.RecordPage{
		Records: make([]map[string]any, 0),
		Page:    opts.Page,
		Limit:   opts.Limit,
		Total:   total,
		Pages:   (total + int64(opts.Limit) - 1) / int64(opts.Limit),
	}
	start := opts.Offset()
	for i := start; i < len(ids) && i < start+opts.Limit; i++ {
		page.Records = append(page.Records, r.render(table, ids[i], lt.rows[ids[i]]))
	}
	return page, nil
}

func matches(table domain.DynamicTable, row domain.Record, needle string) bool {
	for _, f := range table.Fields {
		if f.Type == domain.TypeText && strings.Contains(strings.ToLower(row[f.Name].AsText()), needle) {
			return true
		}
	}
	return false
}

func (r *Records) Count(_ context.Context, table string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	lt, err := r.table(table)
	if err != nil {
		return 0, err
	}
	return int64(len(lt.rows)), nil
}

// InsertBatch skips rows whose catalog-field tuple equals an existing row
// under Value.Equal, mirroring the typed comparison done in SQL.
func (r *Records) InsertBatch(_ context.Context, table domain.DynamicTable, records []domain.Record) (domain.BatchOutcome, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	lt, err := r.table(table.InternalName)
	if err != nil {
		return domain.BatchOutcome{}, err
	}
	var out domain.BatchOutcome
	for i, rec := range records {
		if isDuplicate(table, lt, rec) {
			out.Duplicates++
			continue
		}
		if _, err := r.insert(table, rec); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		out.Inserted++
	}
	return out, nil
}

func isDuplicate(table domain.DynamicTable, lt *liveTable, rec domain.Record) bool {
	for _, row := range lt.rows {
		same := true
		for _, f := range table.Fields {
			if !row[f.Name].Equal(rec[f.Name]) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

// --- Accounts ---

// Accounts implements the account contract.
type Accounts struct{ db *DB }

func (a *Accounts) Create(_ context.Context, acc *domain.Account) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	for _, existing := range a.db.accounts {
		if strings.EqualFold(existing.Username, acc.Username) || (acc.DBRole != "" && existing.DBRole == acc.DBRole) {
			return domain.DuplicateIdentifier(acc.Username)
		}
	}
	if acc.Status == "" {
		acc.Status = domain.StatusActive
	}
	if acc.Role == "" {
		acc.Role = domain.RoleUser
	}
	a.db.nextAcct++
	acc.ID = a.db.nextAcct
	acc.CreatedAt = a.db.now()
	acc.UpdatedAt = acc.CreatedAt
	a.db.accounts[acc.ID] = *acc
	return nil
}

func (a *Accounts) GetByID(_ context.Context, id int64) (domain.Account, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	acc, ok := a.db.accounts[id]
	if !ok {
		return domain.Account{}, domain.NotFound(fmt.Sprint(id), "account not found")
	}
	return acc, nil
}

func (a *Accounts) GetByUsername(_ context.Context, username string) (domain.Account, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	for _, acc := range a.db.accounts {
		if strings.EqualFold(acc.Username, strings.TrimSpace(username)) {
			return acc, nil
		}
	}
	return domain.Account{}, domain.NotFound(username, "account not found")
}

func (a *Accounts) List(_ context.Context) ([]domain.Account, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	out := make([]domain.Account, 0, len(a.db.accounts))
	for _, acc := range a.db.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (a *Accounts) SetStatus(_ context.Context, id int64, status domain.Status) error {
	if !status.Valid() {
		return domain.InvalidInput(fmt.Sprint(id), "invalid status %q", status)
	}
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	acc, ok := a.db.accounts[id]
	if !ok {
		return domain.NotFound(fmt.Sprint(id), "account not found")
	}
	acc.Status = status
	acc.UpdatedAt = a.db.now()
	a.db.accounts[id] = acc
	return nil
}

// --- Permissions ---

// Permissions implements the permission store contract.
type Permissions struct{ db *DB }

func (p *Permissions) GetTablePermission(_ context.Context, accountID int64, table string) (domain.TablePermission, bool, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	tp, ok := p.db.tperms[permKey{accountID, table}]
	if !ok {
		return domain.TablePermission{AccountID: accountID, TableName: table}, false, nil
	}
	return tp, true, nil
}

func (p *Permissions) checkRefs(accountID int64, table string) error {
	if _, ok := p.db.accounts[accountID]; !ok {
		return domain.NotFound(table, "set table permission: referenced account or table does not exist")
	}
	if _, ok := p.db.catalog[table]; !ok {
		return domain.NotFound(table, "set table permission: referenced account or table does not exist")
	}
	return nil
}

func (p *Permissions) UpsertTablePermission(_ context.Context, tp domain.TablePermission) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	if err := p.checkRefs(tp.AccountID, tp.TableName); err != nil {
		return err
	}
	tp.UpdatedAt = p.db.now()
	p.db.tperms[permKey{tp.AccountID, tp.TableName}] = tp
	return nil
}

func (p *Permissions) MergeTablePermission(_ context.Context, accountID int64, table string, flags domain.Flags) (domain.Flags, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	if err := p.checkRefs(accountID, table); err != nil {
		return domain.Flags{}, err
	}
	key := permKey{accountID, table}
	tp := p.db.tperms[key]
	tp.AccountID, tp.TableName = accountID, table
	tp.Flags = tp.Flags.Merge(flags)
	tp.UpdatedAt = p.db.now()
	p.db.tperms[key] = tp
	return tp.Flags, nil
}

func (p *Permissions) ListTablePermissions(_ context.Context, accountID int64) ([]domain.TablePermission, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	return p.db.listTablePermissions(accountID), nil
}

func (p *Permissions) GetGeneralPermission(_ context.Context, accountID int64) (domain.GeneralPermission, bool, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	gp, ok := p.db.gperms[accountID]
	if !ok {
		return domain.GeneralPermission{AccountID: accountID}, false, nil
	}
	return gp, true, nil
}

func (p *Permissions) UpsertGeneralPermission(_ context.Context, gp domain.GeneralPermission) (bool, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	if _, ok := p.db.accounts[gp.AccountID]; !ok {
		return false, domain.NotFound(fmt.Sprint(gp.AccountID), "set general permission: referenced account or table does not exist")
	}
	previous := p.db.gperms[gp.AccountID].CanCreateTables
	gp.UpdatedAt = p.db.now()
	p.db.gperms[gp.AccountID] = gp
	return previous, nil
}
