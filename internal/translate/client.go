package translate

import (
	"strings"

	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
)

// Client translates client companies. Renames: observacoes ↔ anotacoes.
// CNPJ is stored as bare digits and exposed formatted in CNPJFormatado.
type Client struct{}

func (Client) FromPersisted(r domain.ClientRow) domain.Client {
	ativo := true
	if r.Ativo != nil {
		ativo = *r.Ativo
	}
	return domain.Client{
		ID:            r.ID,
		RazaoSocial:   r.RazaoSocial,
		NomeFantasia:  r.NomeFantasia,
		CNPJ:          r.CNPJ,
		CNPJFormatado: FormatCNPJ(r.CNPJ),
		Email:         r.Email,
		Telefone:      r.Telefone,
		Endereco:      r.Endereco,
		Ativo:         ativo,
		Anotacoes:     r.Observacoes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// ToPersisted drops CNPJFormatado and strips punctuation from CNPJ.
func (Client) ToPersisted(p domain.ClientPatch) (remote.Patch, error) {
	out := remote.Patch{}
	setString(out, "razao_social", p.RazaoSocial)
	setString(out, "nome_fantasia", p.NomeFantasia)
	if p.CNPJ != nil {
		out["cnpj"] = Digits(*p.CNPJ)
	}
	setString(out, "email", p.Email)
	setString(out, "telefone", p.Telefone)
	setString(out, "endereco", p.Endereco)
	if p.Ativo != nil {
		out["ativo"] = *p.Ativo
	}
	setString(out, "observacoes", p.Anotacoes)
	return out, nil
}

func PatchFromClient(d domain.Client) domain.ClientPatch {
	ativo := d.Ativo
	return domain.ClientPatch{
		RazaoSocial:   &d.RazaoSocial,
		NomeFantasia:  d.NomeFantasia,
		CNPJ:          &d.CNPJ,
		CNPJFormatado: &d.CNPJFormatado,
		Email:         d.Email,
		Telefone:      d.Telefone,
		Endereco:      d.Endereco,
		Ativo:         &ativo,
		Anotacoes:     d.Anotacoes,
	}
}

// Digits keeps only ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCNPJ renders a 14-digit CNPJ as 00.000.000/0000-00. Anything else is
// returned unchanged.
func FormatCNPJ(cnpj string) string {
	d := Digits(cnpj)
	if len(d) != 14 {
		return cnpj
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}
