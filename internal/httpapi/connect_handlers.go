package httpapi

import (
	"net/http"

	"github.com/seedling/pitch-platform/internal/schemas"
)

// createConnectAccount starts Stripe Express onboarding for the current
// user. Calling it again with an existing account just mints a fresh link.
func (s *Server) createConnectAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	accountID := user.StripeConnectAccountID.String
	if accountID == "" {
		id, err := s.Stripe.CreateConnectAccount(user.Email)
		if err != nil {
			writeDetail(w, http.StatusBadGateway, "Could not create payout account: "+err.Error())
			return
		}
		if _, err := s.DB.ExecContext(r.Context(),
			`update users set stripe_connect_account_id=$1, updated_at=now() where id=$2`,
			id, user.ID); err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		accountID = id
	}

	url, err := s.onboardingLink(accountID)
	if err != nil {
		writeDetail(w, http.StatusBadGateway, "Could not create onboarding link: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemas.ConnectAccountOut{AccountID: accountID, OnboardingURL: url})
}

func (s *Server) onboardingLink(accountID string) (string, error) {
	base := s.Cfg.FrontendURL
	return s.Stripe.CreateOnboardingLink(accountID,
		base+"/dashboard/payouts?refresh=1",
		base+"/dashboard/payouts?onboarded=1")
}

// connectAccountStatus refreshes the account state from Stripe and persists
// the capability flags.
func (s *Server) connectAccountStatus(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !user.StripeConnectAccountID.Valid || user.StripeConnectAccountID.String == "" {
		writeJSON(w, http.StatusOK, schemas.ConnectStatusOut{OnboardingComplete: false})
		return
	}

	acct, err := s.Stripe.GetConnectAccount(user.StripeConnectAccountID.String)
	if err != nil {
		writeDetail(w, http.StatusBadGateway, "Could not fetch payout account: "+err.Error())
		return
	}
	if _, err := s.DB.ExecContext(r.Context(), `
		update users set connect_onboarding_complete=$1, connect_charges_enabled=$2,
			connect_payouts_enabled=$3,
			connect_onboarded_at=case when $1 and connect_onboarded_at is null then now() else connect_onboarded_at end,
			updated_at=now()
		where id=$4`,
		acct.DetailsSubmitted, acct.ChargesEnabled, acct.PayoutsEnabled, user.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, schemas.ConnectStatusOut{
		AccountID:          acct.ID,
		OnboardingComplete: acct.DetailsSubmitted,
		ChargesEnabled:     acct.ChargesEnabled,
		PayoutsEnabled:     acct.PayoutsEnabled,
	})
}

func (s *Server) refreshOnboardingLink(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !user.StripeConnectAccountID.Valid || user.StripeConnectAccountID.String == "" {
		writeDetail(w, http.StatusBadRequest, "No payout account to refresh. Create one first")
		return
	}
	url, err := s.onboardingLink(user.StripeConnectAccountID.String)
	if err != nil {
		writeDetail(w, http.StatusBadGateway, "Could not create onboarding link: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemas.ConnectAccountOut{
		AccountID:     user.StripeConnectAccountID.String,
		OnboardingURL: url,
	})
}

// payoutStatus is the cached view of the connect flags, no Stripe roundtrip.
func (s *Server) payoutStatus(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	writeJSON(w, http.StatusOK, schemas.ConnectStatusOut{
		AccountID:          user.StripeConnectAccountID.String,
		OnboardingComplete: user.ConnectOnboardingDone,
		ChargesEnabled:     user.ConnectChargesEnabled,
		PayoutsEnabled:     user.ConnectPayoutsEnabled,
	})
}
