// Package domain defines the persisted rows (GORM models, legacy column
// names and numeric types) and the domain-shaped records that entity stores
// expose to presentation code. Rows and records are related only through the
// translators in package translate.
//
// JSON tags on rows equal their column names; the REST transport and the
// in-memory backend rely on that.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Table names.
const (
	TableClients    = "clients"
	TablePerdComps  = "perdcomps"
	TableRequests   = "requests"
	TableActivities = "activities"
	TableSettings   = "settings"
)

// PerdCompRow is a tax-compensation filing (PER/DCOMP) in its persisted
// shape. Monetary columns are nullable numbers; the tax code lives in
// "imposto" and free-text notes in "observacoes".
type PerdCompRow struct {
	ID              string     `json:"id"               gorm:"type:char(36);primaryKey"`
	ClientID        string     `json:"client_id"        gorm:"type:char(36);not null;index"`
	Numero          string     `json:"numero"           gorm:"type:varchar(64);not null"`
	Imposto         string     `json:"imposto"          gorm:"type:varchar(32);not null"`
	Competencia     string     `json:"competencia"      gorm:"type:varchar(16);not null"`
	ValorPedido     *float64   `json:"valor_pedido"`
	ValorCompensado *float64   `json:"valor_compensado"`
	ValorRecebido   *float64   `json:"valor_recebido"`
	ValorSaldo      *float64   `json:"valor_saldo"`
	ValorSelic      *float64   `json:"valor_selic"`
	Status          string     `json:"status"           gorm:"type:varchar(32);not null;default:'RASCUNHO';index"`
	DataTransmissao *string    `json:"data_transmissao" gorm:"type:varchar(32)"`
	DataVencimento  *string    `json:"data_vencimento"  gorm:"type:varchar(32)"`
	DataCompetencia *string    `json:"data_competencia" gorm:"type:varchar(32)"`
	Observacoes     *string    `json:"observacoes"      gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"       gorm:"index"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at"       gorm:"index"`
}

func (PerdCompRow) TableName() string { return TablePerdComps }

func (r PerdCompRow) PrimaryKey() string { return r.ID }

func (PerdCompRow) SearchColumns() []string {
	return []string{"numero", "imposto", "competencia", "observacoes"}
}

func (PerdCompRow) SoftDeletable() bool { return true }

// ClientRow is a client company.
type ClientRow struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	RazaoSocial  string     `json:"razao_social"  gorm:"type:varchar(255);not null"`
	NomeFantasia *string    `json:"nome_fantasia" gorm:"type:varchar(255)"`
	CNPJ         string     `json:"cnpj"          gorm:"type:varchar(14);not null;uniqueIndex"`
	Email        *string    `json:"email"         gorm:"type:varchar(255)"`
	Telefone     *string    `json:"telefone"      gorm:"type:varchar(32)"`
	Endereco     *string    `json:"endereco"      gorm:"type:text"`
	Ativo        *bool      `json:"ativo"         gorm:"default:true"`
	Observacoes  *string    `json:"observacoes"   gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"    gorm:"index"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at"    gorm:"index"`
}

func (ClientRow) TableName() string { return TableClients }

func (r ClientRow) PrimaryKey() string { return r.ID }

func (ClientRow) SearchColumns() []string {
	return []string{"razao_social", "nome_fantasia", "cnpj", "email"}
}

func (ClientRow) SoftDeletable() bool { return true }

// RequestRow is a change request awaiting approval. PayloadDiff is free-form
// JSON describing the proposed change.
type RequestRow struct {
	ID            string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Tipo          string         `json:"tipo"          gorm:"type:varchar(32);not null"`
	Entidade      string         `json:"entidade"      gorm:"type:varchar(32);not null;index"`
	EntidadeID    *string        `json:"entidade_id"   gorm:"type:char(36);index"`
	Solicitante   string         `json:"solicitante"   gorm:"type:varchar(128);not null"`
	Status        string         `json:"status"        gorm:"type:varchar(16);not null;default:'PENDENTE';index"`
	PayloadDiff   datatypes.JSON `json:"payload_diff"`
	Justificativa *string        `json:"justificativa" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"    gorm:"index"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     *time.Time     `json:"deleted_at"    gorm:"index"`
}

func (RequestRow) TableName() string { return TableRequests }

func (r RequestRow) PrimaryKey() string { return r.ID }

func (RequestRow) SearchColumns() []string {
	return []string{"tipo", "entidade", "solicitante", "justificativa"}
}

func (RequestRow) SoftDeletable() bool { return true }

// ActivityRow is one audit-log entry written by the backend on every
// successful mutation of another table.
type ActivityRow struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Acao       string         `json:"acao"        gorm:"type:varchar(16);not null"`
	Entidade   string         `json:"entidade"    gorm:"type:varchar(32);not null;index"`
	EntidadeID string         `json:"entidade_id" gorm:"type:char(36);not null;index"`
	Usuario    string         `json:"usuario"     gorm:"type:varchar(128);not null"`
	Detalhes   datatypes.JSON `json:"detalhes"`
	CreatedAt  time.Time      `json:"created_at"  gorm:"index"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (ActivityRow) TableName() string { return TableActivities }

func (r ActivityRow) PrimaryKey() string { return r.ID }

func (ActivityRow) SearchColumns() []string {
	return []string{"acao", "entidade", "entidade_id", "usuario"}
}

// SettingRow is an application setting with a JSON value.
type SettingRow struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Chave     string         `json:"chave"      gorm:"type:varchar(128);not null;uniqueIndex"`
	Valor     datatypes.JSON `json:"valor"`
	Descricao *string        `json:"descricao"  gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SettingRow) TableName() string { return TableSettings }

func (r SettingRow) PrimaryKey() string { return r.ID }

func (SettingRow) SearchColumns() []string { return []string{"chave", "descricao"} }

// Models lists every table model, in migration order.
func Models() []any {
	return []any{
		&ClientRow{},
		&PerdCompRow{},
		&RequestRow{},
		&ActivityRow{},
		&SettingRow{},
		&Idempotency{},
	}
}
