package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// StripeProcessor реализация Processor поверх Stripe Connect (destination charges)
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeProcessor(secretKey, webhookSecret string, logger *zap.Logger) *StripeProcessor {
	return &StripeProcessor{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func wrapStripe(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &Error{Op: op, Code: string(se.Code), Err: err}
	}
	return &Error{Op: op, Err: err}
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, spec CheckoutSpec) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(spec.SuccessURL),
		CancelURL:  stripe.String(spec.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(spec.DestinationAccount),
			},
		},
	}
	params.Context = ctx

	if spec.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(spec.CustomerEmail)
	}
	if spec.ApplicationFeeAmount > 0 {
		params.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(spec.ApplicationFeeAmount)
	}
	for _, item := range spec.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(spec.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	for k, v := range spec.Metadata {
		params.AddMetadata(k, v)
		params.PaymentIntentData.AddMetadata(k, v)
	}
	if spec.IdempotencyKey != "" {
		params.SetIdempotencyKey(spec.IdempotencyKey)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripe("create checkout session", err)
	}

	p.logger.Debug("Checkout session created", zap.String("session_id", s.ID))
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProcessor) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, wrapStripe("retrieve checkout session", err)
	}
	return sessionFromStripe(s), nil
}

func sessionFromStripe(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		PaymentStatus: PaymentStatus(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

func (p *StripeProcessor) CreateRefund(ctx context.Context, spec RefundSpec) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(spec.PaymentIntentID),
		Amount:        stripe.Int64(spec.Amount),
	}
	params.Context = ctx
	if spec.Reason != "" {
		params.Reason = stripe.String(spec.Reason)
	}
	for k, v := range spec.Metadata {
		params.AddMetadata(k, v)
	}
	if spec.IdempotencyKey != "" {
		params.SetIdempotencyKey(spec.IdempotencyKey)
	}

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, wrapStripe("create refund", err)
	}
	return &Refund{ID: r.ID, Status: string(r.Status), Amount: r.Amount}, nil
}

func (p *StripeProcessor) ReverseTransfer(ctx context.Context, spec ReversalSpec) (*Reversal, error) {
	params := &stripe.TransferReversalParams{
		ID:     stripe.String(spec.TransferID),
		Amount: stripe.Int64(spec.Amount),
	}
	params.Context = ctx
	for k, v := range spec.Metadata {
		params.AddMetadata(k, v)
	}
	if spec.IdempotencyKey != "" {
		params.SetIdempotencyKey(spec.IdempotencyKey)
	}

	r, err := p.api.TransferReversals.New(params)
	if err != nil {
		return nil, wrapStripe("reverse transfer", err)
	}
	return &Reversal{ID: r.ID, Status: "succeeded", Amount: r.Amount}, nil
}

func (p *StripeProcessor) RetrieveBalance(ctx context.Context, accountID string) (*Balance, error) {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	b, err := p.api.Balance.Get(params)
	if err != nil {
		return nil, wrapStripe("retrieve balance", err)
	}

	out := &Balance{}
	for _, a := range b.Available {
		out.Available = append(out.Available, Money{Amount: a.Amount, Currency: string(a.Currency)})
	}
	for _, a := range b.Pending {
		out.Pending = append(out.Pending, Money{Amount: a.Amount, Currency: string(a.Currency)})
	}
	return out, nil
}

// RetrievePaymentTransfer ID перевода на подключённый аккаунт, созданного при списании
func (p *StripeProcessor) RetrievePaymentTransfer(ctx context.Context, paymentIntentID string) (string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := p.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return "", wrapStripe("retrieve payment intent", err)
	}
	if pi.LatestCharge == nil || pi.LatestCharge.Transfer == nil || pi.LatestCharge.Transfer.ID == "" {
		return "", ErrNoTransfer
	}
	return pi.LatestCharge.Transfer.ID, nil
}

func (p *StripeProcessor) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: EventType(ev.Type), Payload: payload}

	switch out.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = sessionFromStripe(&s)
	case EventAccountUpdated:
		var a stripe.Account
		if err := json.Unmarshal(ev.Data.Raw, &a); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		out.AccountID = a.ID
		out.AccountEnabled = a.ChargesEnabled && a.PayoutsEnabled
	}

	return out, nil
}
