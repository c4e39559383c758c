package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
)

// CompensationRepository возвраты за оплаченные, но не созданные бронирования
type CompensationRepository struct {
	db base.DBTX
}

func NewCompensationRepository(db base.DBTX) *CompensationRepository {
	return &CompensationRepository{db: db}
}

// Flag сохраняет возврат. false если по этой сессии возврат уже есть.
func (r *CompensationRepository) Flag(ctx context.Context, refund *model.CompensationRefund) (bool, error) {
	query := `
		INSERT INTO compensation_refunds (session_id, teacher_id, student_id, amount, currency, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		refund.SessionID,
		refund.TeacherID,
		refund.StudentID,
		refund.Amount,
		refund.Currency,
		refund.Reason,
		refund.CreatedAt,
	).Scan(&refund.ID)
	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("flag compensation: %w", err)
	}

	return true, nil
}
