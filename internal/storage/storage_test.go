package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

func clientes() domain.DynamicTable {
	return domain.DynamicTable{
		InternalName: "clientes",
		DisplayName:  "Clientes",
		Fields: []domain.Field{
			{Name: "nome", Type: domain.TypeText},
			{Name: "idade", Type: domain.TypeInt},
			{Name: "saldo", Type: domain.TypeFloat},
		},
		Status: domain.StatusActive,
	}
}

func TestCreateTableSQL(t *testing.T) {
	stmt, err := createTableSQL("clientes", clientes().Fields)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stmt, `CREATE TABLE "clientes" (`))
	assert.NotContains(t, stmt, "IF NOT EXISTS")
	assert.Contains(t, stmt, "id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY")
	assert.Contains(t, stmt, `"nome" TEXT`)
	assert.Contains(t, stmt, `"idade" BIGINT`)
	assert.Contains(t, stmt, `"saldo" DOUBLE PRECISION`)

	_, err = createTableSQL(`clientes"; DROP TABLE accounts; --`, clientes().Fields)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = createTableSQL("clientes", []domain.Field{{Name: "id", Type: domain.TypeInt}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = createTableSQL("clientes", []domain.Field{{Name: "x", Type: "blob"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAddColumnSQL(t *testing.T) {
	stmt, err := addColumnSQL("clientes", domain.Field{Name: "nascimento", Type: domain.TypeDate})
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "clientes" ADD COLUMN "nascimento" DATE`, stmt)

	_, err = addColumnSQL("clientes", domain.Field{Name: "Bad Name", Type: domain.TypeText})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMergeLiveFields(t *testing.T) {
	catalog := []domain.Field{{Name: "nome", Type: domain.TypeText}, {Name: "gone", Type: domain.TypeInt}}
	live := []domain.Field{{Name: "nome", Type: domain.TypeText}, {Name: "email", Type: domain.TypeText}, {Name: "idade", Type: domain.TypeInt}}

	merged, added := mergeLiveFields(catalog, live)
	assert.Equal(t, []string{"nome", "gone", "email", "idade"}, fieldNames(merged))
	assert.Equal(t, []string{"email", "idade"}, fieldNames(added))

	again, none := mergeLiveFields(merged, live)
	assert.Equal(t, merged, again)
	assert.Empty(t, none)
}

func fieldNames(fields []domain.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestColumnsToFields(t *testing.T) {
	fields := columnsToFields([]Column{
		{Name: "a", DataType: "integer"},
		{Name: "b", DataType: "character varying"},
		{Name: "c", DataType: "boolean"},
		{Name: "d", DataType: "double precision"},
	})
	assert.Equal(t, []domain.Field{
		{Name: "a", Type: domain.TypeInt},
		{Name: "b", Type: domain.TypeText},
		{Name: "c", Type: domain.TypeBool},
		{Name: "d", Type: domain.TypeFloat},
	}, fields)
}

func TestDuplicateQuery(t *testing.T) {
	rec := domain.Record{"nome": domain.Text("Ana"), "idade": domain.Int(30), "saldo": domain.Null()}
	sqlStr, args, err := duplicateQuery(clientes(), nil, rec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sqlStr, "SELECT EXISTS ("))
	assert.Contains(t, sqlStr, `FROM "clientes"`)
	assert.Contains(t, sqlStr, `"nome" IS NOT DISTINCT FROM CAST($1 AS TEXT)`)
	assert.Contains(t, sqlStr, `"idade" IS NOT DISTINCT FROM CAST($2 AS BIGINT)`)
	assert.Contains(t, sqlStr, `"saldo" IS NOT DISTINCT FROM CAST($3 AS DOUBLE PRECISION)`)
	assert.Equal(t, []any{"Ana", int64(30), nil}, args)
}

func TestDuplicateQueryUsesLiveTypes(t *testing.T) {
	table := clientes()
	table.Fields = append(table.Fields, domain.Field{Name: "visto_em", Type: domain.TypeText})
	live := map[string]string{
		"nome":     "character varying(40)",
		"idade":    "integer",
		"visto_em": "timestamp without time zone",
	}
	rec := domain.Record{"nome": domain.Text("Ana"), "idade": domain.Int(30), "saldo": domain.Float(1), "visto_em": domain.Text("2024-03-01 10:00:00")}

	sqlStr, _, err := duplicateQuery(table, live, rec)
	require.NoError(t, err)
	assert.Contains(t, sqlStr, `"nome" IS NOT DISTINCT FROM CAST($1 AS character varying(40))`)
	assert.Contains(t, sqlStr, `"idade" IS NOT DISTINCT FROM CAST($2 AS integer)`)
	assert.Contains(t, sqlStr, `"saldo" IS NOT DISTINCT FROM CAST($3 AS DOUBLE PRECISION)`)
	assert.Contains(t, sqlStr, `"visto_em" IS NOT DISTINCT FROM CAST($4 AS timestamp without time zone)`)
}

func TestInsertQuery(t *testing.T) {
	rec := domain.Record{"idade": domain.Int(30), "nome": domain.Text("Ana")}
	sqlStr, args, err := insertQuery(clientes(), rec)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "clientes" ("nome","idade") VALUES ($1,$2) RETURNING id`, sqlStr)
	assert.Equal(t, []any{"Ana", int64(30)}, args)

	_, _, err = insertQuery(clientes(), domain.Record{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListQueries(t *testing.T) {
	opts := core.ListQueryOptions{Page: 2, Limit: 10, Search: "50%_off", SortBy: "idade", SortOrder: "desc"}
	list, count := listQueries(clientes(), opts)

	listSQL, listArgs, err := list.ToSql()
	require.NoError(t, err)
	assert.Contains(t, listSQL, `SELECT id, "nome", "idade", "saldo" FROM "clientes"`)
	assert.Contains(t, listSQL, `"nome" ILIKE $1`)
	assert.NotContains(t, listSQL, `"idade" ILIKE`)
	assert.Contains(t, listSQL, `ORDER BY "idade" DESC, id DESC`)
	assert.Contains(t, listSQL, "LIMIT 10 OFFSET 10")
	assert.Equal(t, []any{`%50\%\_off%`}, listArgs)

	countSQL, countArgs, err := count.ToSql()
	require.NoError(t, err)
	assert.Contains(t, countSQL, `SELECT COUNT(*) FROM "clientes" WHERE`)
	assert.Equal(t, listArgs, countArgs)
}

func TestSearchWithoutTextColumns(t *testing.T) {
	table := domain.DynamicTable{InternalName: "numeros", Fields: []domain.Field{{Name: "n", Type: domain.TypeInt}}}
	list, _ := listQueries(table, core.ListQueryOptions{Page: 1, Limit: 5, Search: "x"})
	sqlStr, _, err := list.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "WHERE FALSE")
}

func TestMigrationURL(t *testing.T) {
	u, err := migrationURL("postgres://u:p@db:5432/cad?sslmode=disable", "public")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@db:5432/cad?sslmode=disable", u)

	u, err = migrationURL("postgresql://u:p@db/cad", "cadastros")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@db/cad?search_path=cadastros", u)

	_, err = migrationURL("mysql://u:p@db/cad", "")
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	require.NoError(t, err)
	for _, rel := range []string{"accounts", "tables_metadata", "table_permissions", "general_permissions"} {
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+rel)
	}
}
