package translate

import (
	"fmt"

	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
)

// PerdComp translates filings. Renames: imposto ↔ tributo_pedido,
// observacoes ↔ anotacoes.
type PerdComp struct{}

// FromPersisted converts a row into the domain record. An empty status reads
// as RASCUNHO.
func (PerdComp) FromPersisted(r domain.PerdCompRow) domain.PerdComp {
	status := domain.PerdCompStatus(r.Status)
	if status == "" {
		status = domain.StatusRascunho
	}
	saldo := MoneyString(r.ValorSaldo)
	return domain.PerdComp{
		ID:              r.ID,
		ClientID:        r.ClientID,
		Numero:          r.Numero,
		TributoPedido:   r.Imposto,
		Competencia:     r.Competencia,
		ValorPedido:     MoneyString(r.ValorPedido),
		ValorCompensado: MoneyString(r.ValorCompensado),
		ValorRecebido:   MoneyString(r.ValorRecebido),
		ValorSaldo:      saldo,
		ValorSelic:      MoneyString(r.ValorSelic),
		Status:          status,
		DataTransmissao: r.DataTransmissao,
		DataVencimento:  r.DataVencimento,
		DataCompetencia: r.DataCompetencia,
		Anotacoes:       r.Observacoes,
		TemSaldo:        IsPositive(saldo),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ToPersisted converts a patch into persisted columns. TemSaldo is dropped.
func (PerdComp) ToPersisted(p domain.PerdCompPatch) (remote.Patch, error) {
	out := remote.Patch{}
	setString(out, "client_id", p.ClientID)
	setString(out, "numero", p.Numero)
	setString(out, "imposto", p.TributoPedido)
	setString(out, "competencia", p.Competencia)
	for col, v := range map[string]*string{
		"valor_pedido":     p.ValorPedido,
		"valor_compensado": p.ValorCompensado,
		"valor_recebido":   p.ValorRecebido,
		"valor_saldo":      p.ValorSaldo,
		"valor_selic":      p.ValorSelic,
	} {
		if err := setMoney(out, col, v); err != nil {
			return nil, err
		}
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
		}
		out["status"] = string(*p.Status)
	}
	setString(out, "data_transmissao", p.DataTransmissao)
	setString(out, "data_vencimento", p.DataVencimento)
	setString(out, "data_competencia", p.DataCompetencia)
	setString(out, "observacoes", p.Anotacoes)
	return out, nil
}

// PatchFromPerdComp builds a patch carrying every field of d.
func PatchFromPerdComp(d domain.PerdComp) domain.PerdCompPatch {
	status := d.Status
	temSaldo := d.TemSaldo
	return domain.PerdCompPatch{
		ClientID:        &d.ClientID,
		Numero:          &d.Numero,
		TributoPedido:   &d.TributoPedido,
		Competencia:     &d.Competencia,
		ValorPedido:     &d.ValorPedido,
		ValorCompensado: &d.ValorCompensado,
		ValorRecebido:   &d.ValorRecebido,
		ValorSaldo:      &d.ValorSaldo,
		ValorSelic:      &d.ValorSelic,
		Status:          &status,
		DataTransmissao: d.DataTransmissao,
		DataVencimento:  d.DataVencimento,
		DataCompetencia: d.DataCompetencia,
		Anotacoes:       d.Anotacoes,
		TemSaldo:        &temSaldo,
	}
}
