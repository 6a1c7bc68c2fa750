package stores

import (
	"testing"

	"github.com/tbourn/miele-backoffice/internal/domain"
)

func TestParsePatch_TypedFields(t *testing.T) {
	p, err := ParsePatch[domain.PerdCompPatch]([]string{
		"valor_pedido=1500.00", "numero=123", "tributo_pedido=IRPJ", "status=DEFERIDO",
	})
	if err != nil {
		t.Fatalf("ParsePatch: %v", err)
	}
	if *p.ValorPedido != "1500.00" || *p.Numero != "123" || *p.TributoPedido != "IRPJ" || *p.Status != domain.StatusDeferido {
		t.Fatalf("patch = %+v", p)
	}
	if p.ClientID != nil || p.Anotacoes != nil {
		t.Fatalf("absent fields must stay nil")
	}

	c, err := ParsePatch[domain.ClientPatch]([]string{"ativo=false", "razao_social=ACME = Filial"})
	if err != nil {
		t.Fatalf("ParsePatch client: %v", err)
	}
	if c.Ativo == nil || *c.Ativo || *c.RazaoSocial != "ACME = Filial" {
		t.Fatalf("client patch = %+v", c)
	}

	r, err := ParsePatch[domain.RequestPatch]([]string{`payload_diff={"a":1}`, "motivo=true"})
	if err != nil {
		t.Fatalf("ParsePatch request: %v", err)
	}
	if string(r.PayloadDiff) != `{"a":1}` || *r.Motivo != "true" {
		t.Fatalf("request patch = %+v", r)
	}
}

func TestParsePatch_Errors(t *testing.T) {
	for _, in := range [][]string{
		{"no-equals"},
		{"=x"},
		{"nao_existe=1"},
		{"ativo=talvez"},
	} {
		if _, err := ParsePatch[domain.ClientPatch](in); err == nil {
			t.Fatalf("ParsePatch(%q) should fail", in)
		}
	}
}
