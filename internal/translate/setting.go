package translate

import (
	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
)

// Setting translates settings. Renames: chave ↔ key, valor ↔ value.
type Setting struct{}

func (Setting) FromPersisted(r domain.SettingRow) domain.Setting {
	return domain.Setting{
		ID:        r.ID,
		Key:       r.Chave,
		Value:     readJSON(r.Valor),
		Descricao: r.Descricao,
		UpdatedAt: r.UpdatedAt,
	}
}

func (Setting) ToPersisted(p domain.SettingPatch) (remote.Patch, error) {
	out := remote.Patch{}
	setString(out, "chave", p.Key)
	if err := setJSON(out, "valor", p.Value); err != nil {
		return nil, err
	}
	setString(out, "descricao", p.Descricao)
	return out, nil
}

func PatchFromSetting(d domain.Setting) domain.SettingPatch {
	return domain.SettingPatch{Key: &d.Key, Value: d.Value, Descricao: d.Descricao}
}
