package gateway

import "fmt"

// UserFacingError carries a message safe to show to the paying customer.
type UserFacingError struct {
	Message string
}

func (e *UserFacingError) Error() string {
	return e.Message
}

// supportedCurrencies is the gateway's fixed allow-list for express
// checkout. It is part of the processor's contract, not configuration.
var supportedCurrencies = map[string]bool{
	"AUD": true, "BRL": true, "CAD": true, "CZK": true, "DKK": true,
	"EUR": true, "HKD": true, "HUF": true, "ILS": true, "JPY": true,
	"MYR": true, "MXN": true, "TWD": true, "NZD": true, "NOK": true,
	"PHP": true, "PLN": true, "GBP": true, "RUB": true, "SGD": true,
	"SEK": true, "CHF": true, "THB": true, "TRY": true, "USD": true,
}

// ValidateCurrency rejects currencies the gateway cannot settle. The
// error is user-facing: the customer picked the currency.
func ValidateCurrency(currency string) error {
	if !supportedCurrencies[currency] {
		return &UserFacingError{
			Message: fmt.Sprintf("Please select another payment method. PayPal does not support transaction currency %s", currency),
		}
	}
	return nil
}
