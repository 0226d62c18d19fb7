package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/cadastro-backend/internal/auth"
	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/ingest"
	"github.com/Annany2002/cadastro-backend/internal/testutil/memstore"
)

type env struct {
	db     *memstore.DB
	mirror *memstore.Mirror
	engine *Engine
	admin  domain.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := memstore.New()
	mirror := memstore.NewMirror()
	engine := New(Deps{
		Schema:      db.Schema(),
		Catalog:     db.Metadata(),
		Records:     db.Records(),
		Accounts:    db.Accounts(),
		Permissions: db.Permissions(),
		Mirror:      mirror,
	})
	created, err := engine.BootstrapAdmin(context.Background(), "root", "root-password")
	require.NoError(t, err)
	require.True(t, created)
	admin, err := db.Accounts().GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	return &env{db: db, mirror: mirror, engine: engine, admin: admin}
}

func (e *env) user(t *testing.T, name string) domain.Account {
	t.Helper()
	res, err := e.engine.CreateAccount(context.Background(), e.admin, name, name+"-password", domain.RoleUser)
	require.NoError(t, err)
	return res.Account
}

func clientesSpec() []core.FieldSpec {
	return []core.FieldSpec{{Name: "nome", Type: "text"}, {Name: "idade", Type: "int"}}
}

func kind(t *testing.T, err error, want error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, want), "expected %v, got %v", want, err)
}

func TestEndToEndClientes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	viewer := e.user(t, "ana")
	outsider := e.user(t, "bruno")

	res, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	assert.Equal(t, "clientes", res.Table.InternalName)

	_, err = e.engine.InsertRecord(ctx, e.admin, "clientes", map[string]any{"nome": "Ana", "idade": 30})
	require.NoError(t, err)

	_, err = e.engine.SetTablePermissions(ctx, e.admin, "ana", "clientes", domain.Flags{CanView: true})
	require.NoError(t, err)

	tables, err := e.engine.ListTables(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "clientes", tables[0].InternalName)
	assert.Equal(t, int64(1), tables[0].RowCount)
	assert.Equal(t, domain.Flags{CanView: true}, tables[0].Permissions)

	tables, err = e.engine.ListTables(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestCreateTable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	plain := e.user(t, "ana")

	_, err := e.engine.CreateTable(ctx, plain, "Clientes", "", clientesSpec())
	kind(t, err, domain.ErrForbidden)
	exists, _ := e.db.Schema().TableExists(ctx, "clientes")
	assert.False(t, exists, "forbidden before any DDL")

	_, err = e.engine.CreateTable(ctx, e.admin, "   ", "", clientesSpec())
	kind(t, err, domain.ErrInvalidInput)

	_, err = e.engine.CreateTable(ctx, e.admin, "Clientes", "", []core.FieldSpec{{Name: "nome", Type: "text"}, {Name: "Nome", Type: "int"}})
	kind(t, err, domain.ErrDuplicateIdentifier)

	_, err = e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	_, err = e.engine.CreateTable(ctx, e.admin, "clientes", "", clientesSpec())
	kind(t, err, domain.ErrDuplicateIdentifier)
	_, err = e.engine.CreateTable(ctx, e.admin, "CLIENTES ", "", clientesSpec())
	kind(t, err, domain.ErrDuplicateIdentifier)
}

func TestCreateTableRejectsOrphanRelation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.db.Schema().CreateTable(ctx, "legado", []domain.Field{{Name: "x", Type: domain.TypeText}}))

	_, err := e.engine.CreateTable(ctx, e.admin, "Legado", "", clientesSpec())
	kind(t, err, domain.ErrDuplicateIdentifier)
}

func TestConcurrentCreateTableHasOneWinner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	const creators = 8
	errs := make([]error, creators)
	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			spec := []core.FieldSpec{{Name: fmt.Sprintf("campo_%d", i), Type: "text"}}
			_, errs[i] = e.engine.CreateTable(ctx, e.admin, "Clientes", "", spec)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDuplicateIdentifier)
	}
	assert.Equal(t, 1, winners)

	table, err := e.db.Metadata().Get(ctx, "clientes")
	require.NoError(t, err)
	require.Len(t, table.Fields, 1)
	assert.Equal(t, []string{table.Fields[0].Name}, e.db.LiveFieldNames("clientes"))
}

func TestUpdateTable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ana := e.user(t, "ana")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "antes", clientesSpec())
	require.NoError(t, err)

	_, err = e.engine.UpdateTable(ctx, ana, "clientes", "Clientes Ativos", "")
	kind(t, err, domain.ErrForbidden)
	_, err = e.engine.UpdateTable(ctx, e.admin, "clientes", "  ", "")
	kind(t, err, domain.ErrInvalidInput)
	_, err = e.engine.UpdateTable(ctx, e.admin, "fornecedores", "Fornecedores", "")
	kind(t, err, domain.ErrNotFound)

	e.db.AddLiveColumn("clientes", domain.Field{Name: "cidade", Type: domain.TypeText})
	table, err := e.engine.UpdateTable(ctx, e.admin, "clientes", "Clientes Ativos", "depois")
	require.NoError(t, err)
	assert.Equal(t, "clientes", table.InternalName)
	assert.Equal(t, "Clientes Ativos", table.DisplayName)

	stored, err := e.db.Metadata().Get(ctx, "clientes")
	require.NoError(t, err)
	assert.Equal(t, "depois", stored.Description)
	assert.Len(t, stored.Fields, 3, "renaming keeps and reconciles fields")
	require.NotNil(t, stored.CreatedBy)
	assert.Equal(t, e.admin.ID, *stored.CreatedBy)
}

func TestCreatorIsProvisioned(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	creator := e.user(t, "ana")

	_, err := e.engine.SetGeneralPermission(ctx, e.admin, "ana", true)
	require.NoError(t, err)

	res, err := e.engine.CreateTable(ctx, creator, "Produtos", "", []core.FieldSpec{{Name: "sku", Type: "text"}})
	require.NoError(t, err)
	assert.True(t, res.Mirror.Applied)
	require.NotNil(t, res.Table.CreatedBy)
	assert.Equal(t, creator.ID, *res.Table.CreatedBy)

	flags, err := e.engine.Permissions().EffectiveFlags(ctx, creator, "produtos")
	require.NoError(t, err)
	assert.Equal(t, domain.CreatorFlags, flags)
	assert.Equal(t, domain.CreatorFlags, e.mirror.Flags("ana", "produtos"))
}

func TestAddField(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	plain := e.user(t, "ana")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)

	_, err = e.engine.AddField(ctx, plain, "clientes", core.FieldSpec{Name: "email", Type: "text"})
	kind(t, err, domain.ErrForbidden)

	table, err := e.engine.AddField(ctx, e.admin, "clientes", core.FieldSpec{Name: "Data Nascimento", Type: "date"})
	require.NoError(t, err)
	f, ok := table.FieldByName("data_nascimento")
	require.True(t, ok)
	assert.Equal(t, domain.TypeDate, f.Type)
	assert.Equal(t, "Data Nascimento", f.Label)

	_, err = e.engine.AddField(ctx, e.admin, "clientes", core.FieldSpec{Name: "data nascimento", Type: "text"})
	kind(t, err, domain.ErrColumnConflict)

	_, err = e.engine.AddField(ctx, e.admin, "ghost", core.FieldSpec{Name: "x", Type: "text"})
	kind(t, err, domain.ErrNotFound)

	added, err := e.engine.Reconcile(ctx, "clientes")
	require.NoError(t, err)
	assert.Empty(t, added)
	table, err = e.engine.DescribeTable(ctx, e.admin, "clientes")
	require.NoError(t, err)
	count := 0
	for _, f := range table.Fields {
		if f.Name == "data_nascimento" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestOutOfBandColumnIsAdopted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)

	added, err := e.engine.Reconcile(ctx, "clientes")
	require.NoError(t, err)
	assert.Empty(t, added, "reconcile right after create is a no-op")

	e.db.AddLiveColumn("clientes", domain.Field{Name: "cidade", Type: domain.TypeText})

	table, err := e.engine.DescribeTable(ctx, e.admin, "clientes")
	require.NoError(t, err)
	assert.Len(t, table.Fields, 3)

	_, err = e.engine.AddField(ctx, e.admin, "clientes", core.FieldSpec{Name: "cidade", Type: "text"})
	kind(t, err, domain.ErrColumnConflict)
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	viewer := e.user(t, "ana")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	_, err = e.engine.InsertRecord(ctx, e.admin, "clientes", map[string]any{"nome": "Ana", "idade": "30"})
	require.NoError(t, err)
	_, err = e.engine.SetTablePermissions(ctx, e.admin, "ana", "clientes", domain.AllFlags)
	require.NoError(t, err)

	err = e.engine.SetTableStatus(ctx, viewer, "clientes", domain.StatusInactive)
	kind(t, err, domain.ErrForbidden)

	require.NoError(t, e.engine.SetTableStatus(ctx, e.admin, "clientes", domain.StatusInactive))

	tables, err := e.engine.ListTables(ctx, viewer)
	require.NoError(t, err)
	assert.Empty(t, tables)
	tables, err = e.engine.ListTables(ctx, e.admin)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, domain.StatusInactive, tables[0].Status)

	_, err = e.engine.ListRecords(ctx, viewer, "clientes", core.DefaultListQueryOptions())
	kind(t, err, domain.ErrNotFound)

	require.NoError(t, e.engine.SetTableStatus(ctx, e.admin, "clientes", domain.StatusActive))
	page, err := e.engine.ListRecords(ctx, viewer, "clientes", core.DefaultListQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestRecordOperationsCheckPermissions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ana := e.user(t, "ana")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	id, err := e.engine.InsertRecord(ctx, e.admin, "clientes", map[string]any{"nome": "Ana", "idade": 30})
	require.NoError(t, err)

	_, err = e.engine.InsertRecord(ctx, ana, "clientes", map[string]any{"nome": "Bia"})
	kind(t, err, domain.ErrForbidden)
	_, err = e.engine.GetRecord(ctx, ana, "clientes", id)
	kind(t, err, domain.ErrForbidden)
	kind(t, e.engine.UpdateRecord(ctx, ana, "clientes", id, map[string]any{"idade": 31}), domain.ErrForbidden)
	kind(t, e.engine.DeleteRecord(ctx, ana, "clientes", id), domain.ErrForbidden)

	_, err = e.engine.SetTablePermissions(ctx, e.admin, "ana", "clientes", domain.Flags{CanView: true, CanUpdate: true})
	require.NoError(t, err)

	require.NoError(t, e.engine.UpdateRecord(ctx, ana, "clientes", id, map[string]any{"idade": "31"}))
	row, err := e.engine.GetRecord(ctx, ana, "clientes", id)
	require.NoError(t, err)
	assert.Equal(t, int64(31), row["idade"])
	assert.Equal(t, "Ana", row["nome"])

	kind(t, e.engine.UpdateRecord(ctx, ana, "clientes", 999, map[string]any{"idade": 1}), domain.ErrNotFound)
	kind(t, e.engine.UpdateRecord(ctx, ana, "clientes", id, map[string]any{"idade": "abc"}), domain.ErrValidation)
	kind(t, e.engine.UpdateRecord(ctx, ana, "clientes", id, map[string]any{"id": 5}), domain.ErrValidation)
	kind(t, e.engine.DeleteRecord(ctx, ana, "clientes", id), domain.ErrForbidden)

	require.NoError(t, e.engine.DeleteRecord(ctx, e.admin, "clientes", id))
	kind(t, e.engine.DeleteRecord(ctx, e.admin, "clientes", id), domain.ErrNotFound)
}

func TestInsertRecordValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)

	_, err = e.engine.InsertRecord(ctx, e.admin, "clientes", map[string]any{"nome": "Ana", "idade": "trinta"})
	kind(t, err, domain.ErrValidation)
	_, err = e.engine.InsertRecord(ctx, e.admin, "clientes", map[string]any{"nome": "Ana", "email": "a@b"})
	kind(t, err, domain.ErrValidation)

	count, err := e.db.Records().Count(ctx, "clientes")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportBatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)

	csv := "Nome;Idade;Observação\nAna;30;x\nBia;30.0;y\n"

	first, err := e.engine.ImportCSV(ctx, e.admin, "clientes", strings.NewReader(csv))
	require.NoError(t, err)
	assert.True(t, first.Validated)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, first.Duplicates)
	assert.Len(t, first.Warnings, 1)
	assert.NotEmpty(t, first.BatchID)

	second, err := e.engine.ImportCSV(ctx, e.admin, "clientes", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestImportBatchTypeErrorRejectsAll(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)

	batch := ingest.FromMaps([]map[string]any{
		{"nome": "Ana", "idade": 30},
		{"nome": "Bia", "idade": "abc"},
	})
	res, err := e.engine.ImportBatch(ctx, e.admin, "clientes", batch)
	kind(t, err, domain.ErrValidation)
	assert.False(t, res.Validated)
	assert.Zero(t, res.Inserted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "row 2")

	count, err := e.db.Records().Count(ctx, "clientes")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportBatchRequiresInsert(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ana := e.user(t, "ana")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)

	_, err = e.engine.ImportCSV(ctx, ana, "clientes", strings.NewReader("nome,idade\nAna,30\n"))
	kind(t, err, domain.ErrForbidden)
}

func TestListRecordsSearchAndSort(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	for _, n := range []string{"Carla", "Ana", "Bia", "Mariana"} {
		_, err := e.engine.InsertRecord(ctx, e.admin, "clientes", map[string]any{"nome": n, "idade": 20})
		require.NoError(t, err)
	}

	opts := core.DefaultListQueryOptions()
	opts.Search = "ana"
	page, err := e.engine.ListRecords(ctx, e.admin, "clientes", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	opts = core.DefaultListQueryOptions()
	opts.SortBy = "nome"
	opts.Limit = 2
	page, err = e.engine.ListRecords(ctx, e.admin, "clientes", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Pages)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "Ana", page.Records[0]["nome"])

	opts.SortBy = "senha"
	_, err = e.engine.ListRecords(ctx, e.admin, "clientes", opts)
	kind(t, err, domain.ErrInvalidInput)
}

func TestPermissionChangesAreAdminOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ana := e.user(t, "ana")
	e.user(t, "bruno")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)

	_, err = e.engine.SetTablePermissions(ctx, ana, "bruno", "clientes", domain.AllFlags)
	kind(t, err, domain.ErrForbidden)
	_, err = e.engine.SetGeneralPermission(ctx, ana, "ana", true)
	kind(t, err, domain.ErrForbidden)

	_, err = e.engine.SetTablePermissions(ctx, e.admin, "ghost", "clientes", domain.AllFlags)
	kind(t, err, domain.ErrNotFound)
	_, err = e.engine.SetTablePermissions(ctx, e.admin, "bruno", "ghost", domain.AllFlags)
	kind(t, err, domain.ErrNotFound)

	_, err = e.engine.GetPermissions(ctx, ana, "bruno")
	kind(t, err, domain.ErrForbidden)
	own, err := e.engine.GetPermissions(ctx, ana, "ana")
	require.NoError(t, err)
	assert.Empty(t, own.Tables)
}

func TestGrantCreateTablesProvisionsExistingTables(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.user(t, "ana")
	for _, name := range []string{"Clientes", "Produtos"} {
		_, err := e.engine.CreateTable(ctx, e.admin, name, "", clientesSpec())
		require.NoError(t, err)
	}

	_, err := e.engine.SetGeneralPermission(ctx, e.admin, "ana", true)
	require.NoError(t, err)

	perms, err := e.engine.GetPermissions(ctx, e.admin, "ana")
	require.NoError(t, err)
	assert.True(t, perms.CanCreateTables)
	require.Len(t, perms.Tables, 2)
	for _, p := range perms.Tables {
		assert.Equal(t, domain.CreatorFlags, p.Flags, p.TableName)
	}
}

func TestMirrorDegradedDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.user(t, "ana")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	e.mirror.Fail = true

	report, err := e.engine.SetTablePermissions(ctx, e.admin, "ana", "clientes", domain.Flags{CanView: true})
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.NotEmpty(t, report.Warnings)

	res, err := e.engine.CreateAccount(ctx, e.admin, "carla", "carla-password", domain.RoleUser)
	require.NoError(t, err)
	assert.False(t, res.Mirror.Applied)
	assert.NotZero(t, res.Account.ID)
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ana := e.user(t, "ana")

	_, err := e.engine.CreateAccount(ctx, ana, "x", "long-enough", domain.RoleUser)
	kind(t, err, domain.ErrForbidden)
	_, err = e.engine.CreateAccount(ctx, e.admin, "ANA", "long-enough", domain.RoleUser)
	kind(t, err, domain.ErrDuplicateIdentifier)
	_, err = e.engine.CreateAccount(ctx, e.admin, "short", "123", domain.RoleUser)
	kind(t, err, domain.ErrInvalidInput)
	_, err = e.engine.CreateAccount(ctx, e.admin, "odd", "long-enough", domain.Role("root"))
	kind(t, err, domain.ErrInvalidInput)

	acc, err := e.engine.Authenticate(ctx, "ana", "ana-password")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, acc.ID)
	_, err = e.engine.Authenticate(ctx, "ana", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = e.engine.Authenticate(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	created, err := e.engine.BootstrapAdmin(ctx, "root", "other-password")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUsernamesSharingARoleAreRejected(t *testing.T) {
	ctx := context.Background()
	testCases := []struct{ first, second string }{
		{"joao.silva", "joao_silva"},
		{"Ana", "ana"},
		{"maria-luz", "maria luz"},
	}
	for _, tc := range testCases {
		t.Run(tc.first, func(t *testing.T) {
			e := newEnv(t)
			first, err := e.engine.CreateAccount(ctx, e.admin, tc.first, "long-enough", domain.RoleUser)
			require.NoError(t, err)
			assert.Equal(t, e.mirror.RoleName(tc.first), first.Account.DBRole)

			_, err = e.engine.CreateAccount(ctx, e.admin, tc.second, "long-enough", domain.RoleUser)
			kind(t, err, domain.ErrDuplicateIdentifier)
			assert.NotContains(t, e.mirror.Calls, "provision "+tc.second)
		})
	}
}

func TestDropAccountRole(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.user(t, "ana")

	_, err := e.engine.DropAccountRole(ctx, "ana")
	kind(t, err, domain.ErrInvalidInput)
	_, err = e.engine.DropAccountRole(ctx, "ghost")
	kind(t, err, domain.ErrNotFound)

	_, err = e.engine.SetAccountStatus(ctx, e.admin, "ana", domain.StatusInactive)
	require.NoError(t, err)
	report, err := e.engine.DropAccountRole(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Contains(t, e.mirror.Calls, "drop ana")
	_, provisioned := e.mirror.Roles["ana"]
	assert.False(t, provisioned)

	e.mirror.Fail = true
	report, err = e.engine.DropAccountRole(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, report.Applied)
}

func TestDeactivatedAccountIsLockedOut(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ana := e.user(t, "ana")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	_, err = e.engine.SetTablePermissions(ctx, e.admin, "ana", "clientes", domain.AllFlags)
	require.NoError(t, err)

	_, err = e.engine.SetAccountStatus(ctx, e.admin, "root", domain.StatusInactive)
	kind(t, err, domain.ErrInvalidInput)

	res, err := e.engine.SetAccountStatus(ctx, e.admin, "ana", domain.StatusInactive)
	require.NoError(t, err)
	assert.True(t, res.Mirror.Applied)
	assert.Equal(t, domain.Flags{}, e.mirror.Flags("ana", "clientes"))

	_, err = e.engine.Authenticate(ctx, "ana", "ana-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	ana, err = e.engine.Account(ctx, ana.ID)
	require.NoError(t, err)
	_, err = e.engine.ListTables(ctx, ana)
	kind(t, err, domain.ErrForbidden)

	_, err = e.engine.SetAccountStatus(ctx, e.admin, "ana", domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.AllFlags, e.mirror.Flags("ana", "clientes"), "reactivation re-projects stored grants")
}

func TestSyncGrants(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.user(t, "ana")
	e.user(t, "bruno")
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	_, err = e.engine.SetTablePermissions(ctx, e.admin, "ana", "clientes", domain.Flags{CanView: true})
	require.NoError(t, err)
	_, err = e.engine.SetAccountStatus(ctx, e.admin, "bruno", domain.StatusInactive)
	require.NoError(t, err)
	e.mirror.Calls = nil

	report, err := e.engine.SyncGrants(ctx)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.ElementsMatch(t, []string{"general ana false", "grant ana clientes", "revoke bruno"}, e.mirror.Calls)
}

func TestReconcileAll(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.engine.CreateTable(ctx, e.admin, "Clientes", "", clientesSpec())
	require.NoError(t, err)
	_, err = e.engine.CreateTable(ctx, e.admin, "Produtos", "", clientesSpec())
	require.NoError(t, err)
	e.db.AddLiveColumn("produtos", domain.Field{Name: "preco", Type: domain.TypeFloat})

	added, err := e.engine.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, []domain.Field{{Name: "preco", Type: domain.TypeFloat}}, added["produtos"])
}
