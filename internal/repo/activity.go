package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/miele-backoffice/internal/domain"
)

// Audit actions written to the activities table.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// RecordActivity appends one audit entry. detalhes is marshalled to JSON;
// nil stores SQL NULL.
func RecordActivity(ctx context.Context, db *gorm.DB, acao, entidade, entidadeID, usuario string, detalhes any) (*domain.ActivityRow, error) {
	var blob datatypes.JSON
	if detalhes != nil {
		b, err := json.Marshal(detalhes)
		if err != nil {
			return nil, err
		}
		blob = b
	}
	now := time.Now().UTC()
	a := &domain.ActivityRow{
		ID:         uuid.NewString(),
		Acao:       acao,
		Entidade:   entidade,
		EntidadeID: entidadeID,
		Usuario:    usuario,
		Detalhes:   blob,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}
