package translate

import (
	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
)

// Request translates change requests. Renames: justificativa ↔ motivo.
type Request struct{}

// FromPersisted reads an empty status as PENDENTE.
func (Request) FromPersisted(r domain.RequestRow) domain.Request {
	status := domain.RequestStatus(r.Status)
	if status == "" {
		status = domain.RequestPendente
	}
	return domain.Request{
		ID:          r.ID,
		Tipo:        r.Tipo,
		Entidade:    r.Entidade,
		EntidadeID:  r.EntidadeID,
		Solicitante: r.Solicitante,
		Status:      status,
		PayloadDiff: readJSON(r.PayloadDiff),
		Motivo:      r.Justificativa,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (Request) ToPersisted(p domain.RequestPatch) (remote.Patch, error) {
	out := remote.Patch{}
	setString(out, "tipo", p.Tipo)
	setString(out, "entidade", p.Entidade)
	setString(out, "entidade_id", p.EntidadeID)
	setString(out, "solicitante", p.Solicitante)
	if p.Status != nil {
		out["status"] = string(*p.Status)
	}
	if err := setJSON(out, "payload_diff", p.PayloadDiff); err != nil {
		return nil, err
	}
	setString(out, "justificativa", p.Motivo)
	return out, nil
}

func PatchFromRequest(d domain.Request) domain.RequestPatch {
	status := d.Status
	return domain.RequestPatch{
		Tipo:        &d.Tipo,
		Entidade:    &d.Entidade,
		EntidadeID:  d.EntidadeID,
		Solicitante: &d.Solicitante,
		Status:      &status,
		PayloadDiff: d.PayloadDiff,
		Motivo:      d.Motivo,
	}
}
