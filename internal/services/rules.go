package services

import (
	"errors"
	"strings"

	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/translate"
)

// rules describes what a table accepts on insert and update.
type rules struct {
	required []string
	defaults map[string]any
	check    func(p remote.Patch) error
}

var requestStatuses = map[string]bool{
	string(domain.RequestPendente):  true,
	string(domain.RequestAprovado):  true,
	string(domain.RequestRejeitado): true,
	string(domain.RequestCancelado): true,
}

var moneyColumns = []string{"valor_pedido", "valor_compensado", "valor_recebido", "valor_saldo", "valor_selic"}

var tableRules = map[string]rules{
	domain.TablePerdComps: {
		required: []string{"client_id", "numero", "imposto", "competencia"},
		defaults: map[string]any{"status": string(domain.StatusRascunho)},
		check:    checkPerdComp,
	},
	domain.TableClients: {
		required: []string{"razao_social", "cnpj"},
		defaults: map[string]any{"ativo": true},
		check:    checkClient,
	},
	domain.TableRequests: {
		required: []string{"tipo", "entidade", "solicitante"},
		defaults: map[string]any{"status": string(domain.RequestPendente)},
		check:    checkRequest,
	},
	domain.TableActivities: {
		required: []string{"acao", "entidade", "entidade_id", "usuario"},
	},
	domain.TableSettings: {
		required: []string{"chave"},
	},
}

// prepare validates p in place. On insert, required columns must be present
// and defaults fill absent or blank ones; on update only the columns present
// are checked.
func (r rules) prepare(p remote.Patch, creating bool) error {
	if creating {
		for col, v := range r.defaults {
			if cur, ok := p[col]; !ok || cur == nil || isBlank(cur) {
				p[col] = v
			}
		}
	}
	for _, col := range r.required {
		v, ok := p[col]
		if !ok {
			if creating {
				return invalid(col, "is required")
			}
			continue
		}
		s, isString := v.(string)
		if !isString || strings.TrimSpace(s) == "" {
			return invalid(col, "must be a non-empty string")
		}
		p[col] = strings.TrimSpace(s)
	}
	if r.check != nil {
		return r.check(p)
	}
	return nil
}

func checkPerdComp(p remote.Patch) error {
	if v, ok := p["status"]; ok {
		s, _ := v.(string)
		if !domain.PerdCompStatus(s).Valid() {
			return invalid("status", "unknown filing status")
		}
	}
	for _, col := range moneyColumns {
		v, ok := p[col]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case float64, float32, int, int64:
		case string:
			f, err := translate.ParseMoney(x)
			if err != nil {
				return invalid(col, "must be a decimal number")
			}
			p[col] = f
		default:
			return invalid(col, "must be a decimal number")
		}
	}
	return nil
}

func checkClient(p remote.Patch) error {
	if v, ok := p["cnpj"]; ok {
		s, _ := v.(string)
		digits := translate.Digits(s)
		if len(digits) != 14 {
			return invalid("cnpj", "must have 14 digits")
		}
		p["cnpj"] = digits
	}
	if v, ok := p["ativo"]; ok && v != nil {
		if _, isBool := v.(bool); !isBool {
			return invalid("ativo", "must be a boolean")
		}
	}
	return nil
}

func checkRequest(p remote.Patch) error {
	if v, ok := p["status"]; ok {
		s, _ := v.(string)
		if !requestStatuses[s] {
			return invalid("status", "unknown request status")
		}
	}
	return nil
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
