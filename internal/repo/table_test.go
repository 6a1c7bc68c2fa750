package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
)

func newTableDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique in-memory database per test to avoid schema leakage.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// tick returns a clock advancing one second per call.
func tick() func() time.Time {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func mustTable[P remote.Table](t *testing.T, db *gorm.DB, opts ...TableOption) *Table[P] {
	t.Helper()
	tbl, err := NewTable[P](db, append([]TableOption{WithClock(tick())}, opts...)...)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func seedPerdComps(t *testing.T, tbl *Table[domain.PerdCompRow], n int) []domain.PerdCompRow {
	t.Helper()
	out := make([]domain.PerdCompRow, 0, n)
	for i := 1; i <= n; i++ {
		imposto := "IRPJ"
		if i%2 == 0 {
			imposto = "CSLL"
		}
		row, err := tbl.Insert(context.Background(), remote.Patch{
			"client_id": "c1", "numero": fmt.Sprintf("N-%02d", i), "imposto": imposto,
			"competencia": "2024-01", "valor_pedido": float64(i) * 100,
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		out = append(out, row)
	}
	return out
}

func TestTable_InsertAssignsIDTimestampsAndDefaults(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.PerdCompRow](t, db)

	row, err := tbl.Insert(context.Background(), remote.Patch{
		"client_id": "c1", "numero": "123", "imposto": "IRPJ", "competencia": "2024-01",
		"valor_pedido": 1500.5,
		// managed columns are ignored
		"id": "client-chosen", "created_at": "yesterday",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if row.ID == "" || row.ID == "client-chosen" {
		t.Fatalf("id must be server-assigned, got %q", row.ID)
	}
	if row.CreatedAt.IsZero() || !row.CreatedAt.Equal(row.UpdatedAt) {
		t.Fatalf("timestamps: %v / %v", row.CreatedAt, row.UpdatedAt)
	}
	if row.Status != string(domain.StatusRascunho) {
		t.Fatalf("status default = %q", row.Status)
	}
	if row.ValorPedido == nil || *row.ValorPedido != 1500.5 || row.ValorSaldo != nil {
		t.Fatalf("money columns = %v / %v", row.ValorPedido, row.ValorSaldo)
	}
}

func TestTable_ListPaginatesNewestFirstWithTotal(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.PerdCompRow](t, db)
	seedPerdComps(t, tbl, 23)

	page, err := tbl.List(context.Background(), remote.Query{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 23 || len(page.Records) != 3 {
		t.Fatalf("total=%d len=%d; want 23/3", page.Total, len(page.Records))
	}
	if page.Records[0].Numero != "N-03" || page.Records[2].Numero != "N-01" {
		t.Fatalf("order: %s..%s", page.Records[0].Numero, page.Records[2].Numero)
	}

	filtered, err := tbl.List(context.Background(), remote.Query{Page: 1, PageSize: 50,
		Filters: remote.Filters{"imposto": "CSLL"}})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if filtered.Total != 11 {
		t.Fatalf("filtered total = %d; want 11", filtered.Total)
	}

	byNumber, err := tbl.List(context.Background(), remote.Query{Page: 1, PageSize: 5,
		Filters: remote.Filters{"valor_pedido": "300"}})
	if err != nil || byNumber.Total != 1 || byNumber.Records[0].Numero != "N-03" {
		t.Fatalf("numeric filter = %+v, %v", byNumber, err)
	}

	if _, err := tbl.List(context.Background(), remote.Query{Page: 1, PageSize: 5,
		Filters: remote.Filters{"drop table": "x"}}); !errors.Is(err, remote.ErrUnknownColumn) {
		t.Fatalf("want ErrUnknownColumn, got %v", err)
	}
}

func TestTable_UpdateAndNotFound(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.PerdCompRow](t, db)
	rows := seedPerdComps(t, tbl, 1)
	ctx := context.Background()

	got, err := tbl.Update(ctx, rows[0].ID, remote.Patch{"status": "TRANSMITIDO", "observacoes": "ok"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != "TRANSMITIDO" || got.Observacoes == nil || *got.Observacoes != "ok" {
		t.Fatalf("updated = %+v", got)
	}
	if got.Numero != "N-01" {
		t.Fatalf("untouched column changed: %q", got.Numero)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updated_at not bumped: %v vs %v", got.UpdatedAt, got.CreatedAt)
	}

	if _, err := tbl.Update(ctx, "missing", remote.Patch{"numero": "x"}); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := tbl.Update(ctx, rows[0].ID, remote.Patch{"nope": 1}); !errors.Is(err, remote.ErrUnknownColumn) {
		t.Fatalf("want ErrUnknownColumn, got %v", err)
	}
	if _, err := tbl.Get(ctx, "missing"); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
}

func TestTable_HardDeleteByDefault(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.PerdCompRow](t, db)
	rows := seedPerdComps(t, tbl, 2)
	ctx := context.Background()

	if tbl.SoftDelete() {
		t.Fatalf("soft delete must default off")
	}
	if err := tbl.Delete(ctx, rows[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int64
	db.Model(&domain.PerdCompRow{}).Count(&n)
	if n != 1 {
		t.Fatalf("rows left = %d; want 1", n)
	}
	if err := tbl.Delete(ctx, rows[0].ID); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestTable_SoftDelete(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.PerdCompRow](t, db, WithSoftDelete(true))
	rows := seedPerdComps(t, tbl, 2)
	ctx := context.Background()

	if err := tbl.Delete(ctx, rows[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int64
	db.Model(&domain.PerdCompRow{}).Count(&n)
	if n != 2 {
		t.Fatalf("soft delete must keep the row, count=%d", n)
	}
	page, _ := tbl.List(ctx, remote.Query{Page: 1, PageSize: 10})
	if page.Total != 1 || page.Records[0].ID != rows[1].ID {
		t.Fatalf("list should hide soft-deleted rows: %+v", page)
	}
	if _, err := tbl.Get(ctx, rows[0].ID); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("Get soft-deleted: %v", err)
	}
	if err := tbl.Delete(ctx, rows[0].ID); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("re-delete soft-deleted: %v", err)
	}

	// settings have no deleted_at column
	st := mustTable[domain.SettingRow](t, db, WithSoftDelete(true))
	if st.SoftDelete() {
		t.Fatalf("settings cannot soft delete")
	}
}

func TestTable_SearchCaseInsensitiveAcrossColumns(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.ClientRow](t, db)
	ctx := context.Background()
	for _, p := range []remote.Patch{
		{"razao_social": "Miele do Brasil Ltda", "cnpj": "11111111000111"},
		{"razao_social": "Acme SA", "cnpj": "22222222000122", "email": "fiscal@MIELE.com"},
		{"razao_social": "Outra 100% Ltda", "cnpj": "33333333000133"},
	} {
		if _, err := tbl.Insert(ctx, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := tbl.Search(ctx, "miele")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].RazaoSocial != "Acme SA" {
		t.Fatalf("search = %+v", got)
	}

	pct, _ := tbl.Search(ctx, "100%")
	if len(pct) != 1 {
		t.Fatalf("%% must be matched literally, got %d rows", len(pct))
	}
	none, err := tbl.Search(ctx, "zzz")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("no match = %v, %v", none, err)
	}
}

func TestTable_DuplicateAndJSONColumns(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.SettingRow](t, db)
	ctx := context.Background()

	row, err := tbl.Insert(ctx, remote.Patch{"chave": "selic", "valor": map[string]any{"taxa": 13.75}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if string(row.Valor) != `{"taxa":13.75}` {
		t.Fatalf("valor = %s", row.Valor)
	}
	if _, err := tbl.Insert(ctx, remote.Patch{"chave": "selic"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	upd, err := tbl.Update(ctx, row.ID, remote.Patch{"valor": datatypes.JSON(`[1,2]`)})
	if err != nil || string(upd.Valor) != `[1,2]` {
		t.Fatalf("update json = %s, %v", upd.Valor, err)
	}
}

func TestTable_StatsAndWithDB(t *testing.T) {
	db := newTableDB(t)
	tbl := mustTable[domain.PerdCompRow](t, db)
	ctx := context.Background()

	n, max, err := tbl.Stats(ctx)
	if err != nil || n != 0 || max != nil {
		t.Fatalf("empty stats = %d, %v, %v", n, max, err)
	}
	rows := seedPerdComps(t, tbl, 3)
	n, max, err = tbl.Stats(ctx)
	if err != nil || n != 3 || max == nil || !max.Equal(rows[2].UpdatedAt) {
		t.Fatalf("stats = %d, %v, %v", n, max, err)
	}

	sentinel := errors.New("rollback")
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := tbl.WithDB(tx).Insert(ctx, remote.Patch{
			"client_id": "c1", "numero": "tx", "imposto": "PIS", "competencia": "2024-02",
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("tx err = %v", err)
	}
	if n, _, _ = tbl.Stats(ctx); n != 3 {
		t.Fatalf("rolled back insert leaked, count=%d", n)
	}
}
