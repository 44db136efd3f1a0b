package mercadopago

import (
	"errors"
	"fmt"
)

// ErrNoAccessToken is returned when a call is attempted without credentials.
var ErrNoAccessToken = errors.New("mercadopago access token is not configured")

// APIError represents a non-2xx response from Mercado Pago.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "mercadopago api error"
	}
	if len(e.Body) == 0 {
		return fmt.Sprintf("mercadopago api error: status %d", e.StatusCode)
	}
	b := e.Body
	if len(b) > 1024 {
		b = b[:1024]
	}
	return fmt.Sprintf("mercadopago api error: status %d: %s", e.StatusCode, string(b))
}

// IsAPIError checks whether err carries a provider status response.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
