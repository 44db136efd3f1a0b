package mercadopago

// PreferenceRequest corresponds to "Create preference" (POST /checkout/preferences).
type PreferenceRequest struct {
	Items    []Item   `json:"items"`
	BackURLs BackURLs `json:"back_urls"`
}

type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	CurrencyID  string `json:"currency_id"`
}

// BackURLs are the pages the buyer returns to after paying.
type BackURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending"`
	Failure string `json:"failure"`
}

// PreferenceResponse is the subset of the provider response the storefront
// relies on. Both checkout URLs are optional.
type PreferenceResponse struct {
	ID               string `json:"id,omitempty"`
	InitPoint        string `json:"init_point,omitempty"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}
