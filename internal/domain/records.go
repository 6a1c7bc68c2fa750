package domain

import (
	"encoding/json"
	"time"
)

// PerdCompStatus is the descriptive status of a filing. Any value may
// overwrite any other; no transitions are enforced.
type PerdCompStatus string

const (
	StatusRascunho             PerdCompStatus = "RASCUNHO"
	StatusTransmitido          PerdCompStatus = "TRANSMITIDO"
	StatusEmProcessamento      PerdCompStatus = "EM_PROCESSAMENTO"
	StatusDeferido             PerdCompStatus = "DEFERIDO"
	StatusIndeferido           PerdCompStatus = "INDEFERIDO"
	StatusParcialmenteDeferido PerdCompStatus = "PARCIALMENTE_DEFERIDO"
	StatusCancelado            PerdCompStatus = "CANCELADO"
	StatusVencido              PerdCompStatus = "VENCIDO"
)

// PerdCompStatuses lists every filing status in display order.
var PerdCompStatuses = []PerdCompStatus{
	StatusRascunho, StatusTransmitido, StatusEmProcessamento, StatusDeferido,
	StatusIndeferido, StatusParcialmenteDeferido, StatusCancelado, StatusVencido,
}

// Valid reports whether s is one of PerdCompStatuses.
func (s PerdCompStatus) Valid() bool {
	for _, v := range PerdCompStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// RequestStatus is the decorative approval state of a Request.
type RequestStatus string

const (
	RequestPendente  RequestStatus = "PENDENTE"
	RequestAprovado  RequestStatus = "APROVADO"
	RequestRejeitado RequestStatus = "REJEITADO"
	RequestCancelado RequestStatus = "CANCELADO"
)

// PerdComp is a filing in domain shape: monetary values are decimal strings,
// "imposto" is exposed as TributoPedido and "observacoes" as Anotacoes.
type PerdComp struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"client_id"`
	Numero          string         `json:"numero"`
	TributoPedido   string         `json:"tributo_pedido"`
	Competencia     string         `json:"competencia"`
	ValorPedido     string         `json:"valor_pedido"`
	ValorCompensado string         `json:"valor_compensado"`
	ValorRecebido   string         `json:"valor_recebido"`
	ValorSaldo      string         `json:"valor_saldo"`
	ValorSelic      string         `json:"valor_selic"`
	Status          PerdCompStatus `json:"status"`
	DataTransmissao *string        `json:"data_transmissao,omitempty"`
	DataVencimento  *string        `json:"data_vencimento,omitempty"`
	DataCompetencia *string        `json:"data_competencia,omitempty"`
	Anotacoes       *string        `json:"anotacoes,omitempty"`
	// TemSaldo is derived from ValorSaldo and never persisted.
	TemSaldo  bool      `json:"tem_saldo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p PerdComp) EntityID() string { return p.ID }

// PerdCompPatch is a partial filing in domain shape. Nil fields are not part
// of the patch.
type PerdCompPatch struct {
	ClientID        *string         `json:"client_id,omitempty"`
	Numero          *string         `json:"numero,omitempty"`
	TributoPedido   *string         `json:"tributo_pedido,omitempty"`
	Competencia     *string         `json:"competencia,omitempty"`
	ValorPedido     *string         `json:"valor_pedido,omitempty"`
	ValorCompensado *string         `json:"valor_compensado,omitempty"`
	ValorRecebido   *string         `json:"valor_recebido,omitempty"`
	ValorSaldo      *string         `json:"valor_saldo,omitempty"`
	ValorSelic      *string         `json:"valor_selic,omitempty"`
	Status          *PerdCompStatus `json:"status,omitempty"`
	DataTransmissao *string         `json:"data_transmissao,omitempty"`
	DataVencimento  *string         `json:"data_vencimento,omitempty"`
	DataCompetencia *string         `json:"data_competencia,omitempty"`
	Anotacoes       *string         `json:"anotacoes,omitempty"`
	// TemSaldo is accepted so forms can echo a whole record back; it is
	// dropped on write.
	TemSaldo *bool `json:"tem_saldo,omitempty"`
}

// Client is a client company in domain shape.
type Client struct {
	ID           string  `json:"id"`
	RazaoSocial  string  `json:"razao_social"`
	NomeFantasia *string `json:"nome_fantasia,omitempty"`
	CNPJ         string  `json:"cnpj"`
	// CNPJFormatado is CNPJ as 00.000.000/0000-00; derived, never persisted.
	CNPJFormatado string    `json:"cnpj_formatado"`
	Email         *string   `json:"email,omitempty"`
	Telefone      *string   `json:"telefone,omitempty"`
	Endereco      *string   `json:"endereco,omitempty"`
	Ativo         bool      `json:"ativo"`
	Anotacoes     *string   `json:"anotacoes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c Client) EntityID() string { return c.ID }

// ClientPatch is a partial client.
type ClientPatch struct {
	RazaoSocial   *string `json:"razao_social,omitempty"`
	NomeFantasia  *string `json:"nome_fantasia,omitempty"`
	CNPJ          *string `json:"cnpj,omitempty"`
	CNPJFormatado *string `json:"cnpj_formatado,omitempty"`
	Email         *string `json:"email,omitempty"`
	Telefone      *string `json:"telefone,omitempty"`
	Endereco      *string `json:"endereco,omitempty"`
	Ativo         *bool   `json:"ativo,omitempty"`
	Anotacoes     *string `json:"anotacoes,omitempty"`
}

// Request is a change request in domain shape. PayloadDiff is opaque JSON.
type Request struct {
	ID          string          `json:"id"`
	Tipo        string          `json:"tipo"`
	Entidade    string          `json:"entidade"`
	EntidadeID  *string         `json:"entidade_id,omitempty"`
	Solicitante string          `json:"solicitante"`
	Status      RequestStatus   `json:"status"`
	PayloadDiff json.RawMessage `json:"payload_diff"`
	Motivo      *string         `json:"motivo,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (r Request) EntityID() string { return r.ID }

// RequestPatch is a partial request.
type RequestPatch struct {
	Tipo        *string         `json:"tipo,omitempty"`
	Entidade    *string         `json:"entidade,omitempty"`
	EntidadeID  *string         `json:"entidade_id,omitempty"`
	Solicitante *string         `json:"solicitante,omitempty"`
	Status      *RequestStatus  `json:"status,omitempty"`
	PayloadDiff json.RawMessage `json:"payload_diff,omitempty"`
	Motivo      *string         `json:"motivo,omitempty"`
}

// Activity is one audit-log entry.
type Activity struct {
	ID         string          `json:"id"`
	Acao       string          `json:"acao"`
	Entidade   string          `json:"entidade"`
	EntidadeID string          `json:"entidade_id"`
	Usuario    string          `json:"usuario"`
	Detalhes   json.RawMessage `json:"detalhes"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (a Activity) EntityID() string { return a.ID }

// ActivityPatch is a partial activity.
type ActivityPatch struct {
	Acao       *string         `json:"acao,omitempty"`
	Entidade   *string         `json:"entidade,omitempty"`
	EntidadeID *string         `json:"entidade_id,omitempty"`
	Usuario    *string         `json:"usuario,omitempty"`
	Detalhes   json.RawMessage `json:"detalhes,omitempty"`
}

// Setting is an application setting; Value is opaque JSON.
type Setting struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Descricao *string         `json:"descricao,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s Setting) EntityID() string { return s.ID }

// SettingPatch is a partial setting.
type SettingPatch struct {
	Key       *string         `json:"key,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Descricao *string         `json:"descricao,omitempty"`
}
