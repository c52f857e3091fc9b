package identity

import (
	"context"
	"strings"

	"github.com/bissquit/healthboard/internal/domain"
)

// Repository looks up operator accounts.
type Repository interface {
	GetOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error)
}

// StaticRepository serves operators loaded from configuration.
type StaticRepository struct {
	operators map[string]domain.Operator
}

// NewStaticRepository creates a repository over a fixed operator list.
// Emails are matched case-insensitively.
func NewStaticRepository(operators []domain.Operator) *StaticRepository {
	byEmail := make(map[string]domain.Operator, len(operators))
	for _, op := range operators {
		byEmail[strings.ToLower(op.Email)] = op
	}
	return &StaticRepository{operators: byEmail}
}

// GetOperatorByEmail returns the operator with the given email.
func (r *StaticRepository) GetOperatorByEmail(_ context.Context, email string) (*domain.Operator, error) {
	op, ok := r.operators[strings.ToLower(email)]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return &op, nil
}
