package translate

import (
	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
)

// Activity translates audit-log entries; no renames.
type Activity struct{}

func (Activity) FromPersisted(r domain.ActivityRow) domain.Activity {
	return domain.Activity{
		ID:         r.ID,
		Acao:       r.Acao,
		Entidade:   r.Entidade,
		EntidadeID: r.EntidadeID,
		Usuario:    r.Usuario,
		Detalhes:   readJSON(r.Detalhes),
		CreatedAt:  r.CreatedAt,
	}
}

func (Activity) ToPersisted(p domain.ActivityPatch) (remote.Patch, error) {
	out := remote.Patch{}
	setString(out, "acao", p.Acao)
	setString(out, "entidade", p.Entidade)
	setString(out, "entidade_id", p.EntidadeID)
	setString(out, "usuario", p.Usuario)
	if err := setJSON(out, "detalhes", p.Detalhes); err != nil {
		return nil, err
	}
	return out, nil
}

func PatchFromActivity(d domain.Activity) domain.ActivityPatch {
	return domain.ActivityPatch{
		Acao:       &d.Acao,
		Entidade:   &d.Entidade,
		EntidadeID: &d.EntidadeID,
		Usuario:    &d.Usuario,
		Detalhes:   d.Detalhes,
	}
}
