package domain

import "time"

type Step string

const (
	StepDetails Step = "details"
	StepPayment Step = "payment"
	StepSuccess Step = "success"
)

const (
	// SessionStaleAfter bounds how long a checkout session may present a
	// cached payment intent as payable.
	SessionStaleAfter = time.Hour

	// OrderFreshWindow exempts just-created orders from the staleness
	// check, so a submit followed by a slow page load is not bounced back
	// to the details step.
	OrderFreshWindow = 2 * time.Minute
)

// PaymentIntent mirrors the payment service's authorized-but-unconfirmed
// charge attempt. The client secret drives the payment widget and is the
// only handle this system holds.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}
