package domain

// Voucher is a purchasable offer with a fixed price.
// Amount is expressed in whole units of the store currency.
type Voucher struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Amount      int64  `json:"amount" yaml:"amount"`
}

// CheckoutRequest is the DTO for incoming checkout calls.
type CheckoutRequest struct {
	ID string `json:"id"`
}

// CheckoutResult carries the provider redirect targets.
// At most one of them is guaranteed to be present.
type CheckoutResult struct {
	InitPoint        string `json:"initPoint,omitempty"`
	SandboxInitPoint string `json:"sandboxInitPoint,omitempty"`
}

// RedirectURL prefers the live checkout URL and falls back to the sandbox one.
func (r CheckoutResult) RedirectURL() string {
	if r.InitPoint != "" {
		return r.InitPoint
	}
	return r.SandboxInitPoint
}

// CheckoutStatus names the provider callback routes.
type CheckoutStatus string

const (
	CheckoutSuccess CheckoutStatus = "success"
	CheckoutPending CheckoutStatus = "pending"
	CheckoutFailure CheckoutStatus = "failure"
)

// CheckoutStatuses lists every callback status in the order the provider expects them.
var CheckoutStatuses = []CheckoutStatus{CheckoutSuccess, CheckoutPending, CheckoutFailure}

// ParseCheckoutStatus reports whether s names a known callback status.
func ParseCheckoutStatus(s string) (CheckoutStatus, bool) {
	for _, st := range CheckoutStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
