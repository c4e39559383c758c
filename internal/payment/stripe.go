// Package payment выплаты учителям и приём событий оплаты от Stripe
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/transfer"
)

// transferCreator часть transfer.Client, которой пользуется StripePayouter
type transferCreator interface {
	New(params *stripe.TransferParams) (*stripe.Transfer, error)
}

// StripePayouter переводит долю учителя на подключённый аккаунт Stripe Connect
type StripePayouter struct {
	transfers transferCreator
}

var _ service.Payouter = (*StripePayouter)(nil)

func NewStripePayouter(secretKey string) *StripePayouter {
	return &StripePayouter{
		transfers: transfer.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: secretKey,
		},
	}
}

// Transfer создаёт перевод. Stripe возвращает тот же перевод при повторе с тем же ключом идемпотентности.
func (p *StripePayouter) Transfer(ctx context.Context, req model.PayoutRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String(req.BookingID.String()),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("booking_id", req.BookingID.String())

	t, err := p.transfers.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return "", fmt.Errorf("stripe transfer: %s (%s)", stripeErr.Msg, stripeErr.Code)
		}
		return "", fmt.Errorf("stripe transfer: %w", err)
	}

	return t.ID, nil
}
