package services

import (
	"context"
	"encoding/json"

	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
)

// SeedDemo fills an empty database with a few clients, filings, a change
// request and settings. It does nothing (and reports false) when the clients
// table already has rows.
func (s *TableService) SeedDemo(ctx context.Context, userID string) (bool, error) {
	n, _, err := s.Stats(ctx, domain.TableClients)
	if err != nil || n > 0 {
		return false, err
	}

	clients := []remote.Patch{
		{"razao_social": "Metalúrgica São João Ltda", "nome_fantasia": "Metal SJ", "cnpj": "12.345.678/0001-95", "email": "fiscal@metalsj.com.br"},
		{"razao_social": "Comércio Açaí do Norte S.A.", "cnpj": "98.765.432/0001-10", "observacoes": "cliente desde 2019"},
	}
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		id, _, err := s.Create(ctx, userID, domain.TableClients, c)
		if err != nil {
			return false, err
		}
		ids = append(ids, id)
	}

	filings := []remote.Patch{
		{"client_id": ids[0], "numero": "10101.11111.010124.1.3.04-0001", "imposto": "IRPJ", "competencia": "2024-01",
			"valor_pedido": 1500.0, "valor_saldo": 1500.0},
		{"client_id": ids[0], "numero": "10101.22222.020124.1.3.04-0002", "imposto": "CSLL", "competencia": "2024-02",
			"valor_pedido": 820.35, "valor_compensado": 820.35, "valor_saldo": 0.0, "status": string(domain.StatusDeferido)},
		{"client_id": ids[1], "numero": "20202.33333.030124.1.3.04-0003", "imposto": "PIS", "competencia": "2024-03",
			"valor_pedido": 12000.0, "status": string(domain.StatusTransmitido), "data_transmissao": "2024-04-10"},
	}
	for _, f := range filings {
		if _, _, err := s.Create(ctx, userID, domain.TablePerdComps, f); err != nil {
			return false, err
		}
	}

	if _, _, err := s.Create(ctx, userID, domain.TableRequests, remote.Patch{
		"tipo": "ALTERACAO", "entidade": domain.TableClients, "entidade_id": ids[1], "solicitante": userID,
		"payload_diff":  json.RawMessage(`{"email":[null,"contato@acai.com.br"]}`),
		"justificativa": "novo contato fiscal",
	}); err != nil {
		return false, err
	}

	for _, st := range []remote.Patch{
		{"chave": "selic_mensal", "valor": json.RawMessage(`{"taxa":0.83,"referencia":"2024-06"}`), "descricao": "Taxa SELIC aplicada à correção"},
		{"chave": "itens_por_pagina", "valor": json.RawMessage(`20`)},
	} {
		if _, _, err := s.Create(ctx, userID, domain.TableSettings, st); err != nil {
			return false, err
		}
	}
	return true, nil
}
