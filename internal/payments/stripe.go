package payments

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/account"
	"github.com/stripe/stripe-go/v76/accountlink"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/transfer"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Provider abstracts the payment processor so handlers and the worker can be
// tested without network calls.
type Provider interface {
	CreatePaymentIntent(amountCents int64, metadata map[string]string) (*Intent, error)
	GetPaymentIntent(id string) (*Intent, error)
	CreateConnectAccount(email string) (string, error)
	CreateOnboardingLink(accountID, refreshURL, returnURL string) (string, error)
	GetConnectAccount(accountID string) (*ConnectAccount, error)
	CreateTransfer(amountCents int64, destination, idempotencyKey string, metadata map[string]string) (string, error)
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type ConnectAccount struct {
	ID               string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

// StripeProvider talks to the live Stripe API.
type StripeProvider struct{}

func NewStripe(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{}
}

func (p *StripeProvider) CreatePaymentIntent(amountCents int64, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) GetPaymentIntent(id string) (*Intent, error) {
	pi, err := paymentintent.Get(id, nil)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) CreateConnectAccount(email string) (string, error) {
	acct, err := account.New(&stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
	})
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func (p *StripeProvider) CreateOnboardingLink(accountID, refreshURL, returnURL string) (string, error) {
	link, err := accountlink.New(&stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

func (p *StripeProvider) GetConnectAccount(accountID string) (*ConnectAccount, error) {
	acct, err := account.GetByID(accountID, nil)
	if err != nil {
		return nil, err
	}
	return &ConnectAccount{
		ID:               acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}, nil
}

func (p *StripeProvider) CreateTransfer(amountCents int64, destination, idempotencyKey string, metadata map[string]string) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(destination),
	}
	params.IdempotencyKey = stripe.String(idempotencyKey)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	tr, err := transfer.New(params)
	if err != nil {
		return "", err
	}
	return tr.ID, nil
}

// VerifyWebhook checks the Stripe-Signature header and returns the event.
func VerifyWebhook(payload []byte, signature, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, secret)
}

// ToCents converts a dollar amount to integer cents for the processor.
func ToCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
