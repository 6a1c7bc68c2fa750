package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(PerdCompRow{}).TableName(): "perdcomps",
		(ClientRow{}).TableName():   "clients",
		(RequestRow{}).TableName():  "requests",
		(ActivityRow{}).TableName(): "activities",
		(SettingRow{}).TableName():  "settings",
		(Idempotency{}).TableName(): "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestSoftDeletableOnlyWhereDeletedAtExists(t *testing.T) {
	type sd interface{ SoftDeletable() bool }
	for _, m := range []any{PerdCompRow{}, ClientRow{}, RequestRow{}} {
		if _, ok := m.(sd); !ok {
			t.Fatalf("%T should be soft-deletable", m)
		}
	}
	for _, m := range []any{ActivityRow{}, SettingRow{}} {
		if _, ok := m.(sd); ok {
			t.Fatalf("%T has no deleted_at column", m)
		}
	}
}

func TestMigrations_CreateTablesAndIndexes(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range Models() {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T", tbl)
		}
	}
	if !m.HasColumn(&PerdCompRow{}, "imposto") || !m.HasColumn(&PerdCompRow{}, "observacoes") {
		t.Fatalf("perdcomps must keep legacy column names")
	}
	if !m.HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected ux_user_scope_key on idempotency")
	}
}

func TestPerdCompRow_StatusDefaultAndJSONRoundTrip(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&PerdCompRow{}, &RequestRow{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Now().UTC()
	if err := db.Exec(
		"INSERT INTO perdcomps (id, client_id, numero, imposto, competencia, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		"p1", "c1", "123", "IRPJ", "2024-01", now, now,
	).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got PerdCompRow
	if err := db.First(&got, "id = ?", "p1").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != string(StatusRascunho) {
		t.Fatalf("status default = %q; want RASCUNHO", got.Status)
	}
	if got.ValorPedido != nil {
		t.Fatalf("valor_pedido should be NULL, got %v", *got.ValorPedido)
	}

	req := RequestRow{ID: "r1", Tipo: "ALTERACAO", Entidade: "clients", Solicitante: "ana",
		Status: "PENDENTE", PayloadDiff: datatypes.JSON(`{"email":["a","b"]}`)}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}
	var back RequestRow
	if err := db.First(&back, "id = ?", "r1").Error; err != nil {
		t.Fatalf("load request: %v", err)
	}
	if string(back.PayloadDiff) != `{"email":["a","b"]}` {
		t.Fatalf("payload_diff = %s", back.PayloadDiff)
	}
}

func TestPerdCompStatus_Valid(t *testing.T) {
	for _, s := range PerdCompStatuses {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if PerdCompStatus("APROVADO").Valid() {
		t.Fatalf("APROVADO is not a filing status")
	}
	if len(PerdCompStatuses) != 8 {
		t.Fatalf("expected 8 statuses, got %d", len(PerdCompStatuses))
	}
}

func TestEntityIDs(t *testing.T) {
	if (PerdComp{ID: "a"}).EntityID() != "a" || (Client{ID: "b"}).EntityID() != "b" ||
		(Request{ID: "c"}).EntityID() != "c" || (Activity{ID: "d"}).EntityID() != "d" ||
		(Setting{ID: "e"}).EntityID() != "e" {
		t.Fatalf("EntityID must return ID")
	}
}

func TestRowPrimaryKeys(t *testing.T) {
	type pk interface{ PrimaryKey() string }
	for _, r := range []pk{
		PerdCompRow{ID: "1"}, ClientRow{ID: "1"}, RequestRow{ID: "1"}, ActivityRow{ID: "1"}, SettingRow{ID: "1"},
	} {
		if r.PrimaryKey() != "1" {
			t.Fatalf("%T.PrimaryKey() = %q", r, r.PrimaryKey())
		}
	}
}
