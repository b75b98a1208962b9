package reference

import (
	"fmt"

	"ms-express-checkout/internal/config"
	"ms-express-checkout/internal/logger"
)

// Document is the capability a referenced business object exposes to the
// payment flow. Whatever variant sits behind it (order, invoice,
// account), the dispatcher only ever sees these two methods.
type Document interface {
	MarkPaid() error
	MarkCancelled() error
}

// Resolver loads one Document variant by its name.
type Resolver func(name string) (Document, error)

// SuccessPage is the configured post-payment landing page key.
type SuccessPage string

const (
	SuccessPageOrders    SuccessPage = "Orders"
	SuccessPageInvoices  SuccessPage = "Invoices"
	SuccessPageMyAccount SuccessPage = "My Account"
)

// Path maps the page key to its site path. Unknown keys report false and
// the caller falls back to the order confirmation page.
func (p SuccessPage) Path() (string, bool) {
	switch p {
	case SuccessPageOrders:
		return "/orders", true
	case SuccessPageInvoices:
		return "/invoices", true
	case SuccessPageMyAccount:
		return "/me", true
	default:
		return "", false
	}
}

// Dispatcher resolves a (reference type, reference name) pair to a
// Document and invokes the payment callback on it.
type Dispatcher struct {
	resolvers map[string]Resolver
	cart      config.CartConfig
	baseURL   string
	log       *logger.Logger
}

func NewDispatcher(cart config.CartConfig, baseURL string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		resolvers: make(map[string]Resolver),
		cart:      cart,
		baseURL:   baseURL,
		log:       log,
	}
}

// Register binds a reference type tag to its document resolver.
func (d *Dispatcher) Register(docType string, resolver Resolver) {
	d.resolvers[docType] = resolver
}

func (d *Dispatcher) resolve(docType, name string) (Document, error) {
	resolver, ok := d.resolvers[docType]
	if !ok {
		return nil, fmt.Errorf("no document resolver registered for reference type %q", docType)
	}
	doc, err := resolver(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", docType, name, err)
	}
	return doc, nil
}

// MarkPaid invokes the paid callback on the referenced document and
// returns the post-payment redirect determined by the shopping-cart
// configuration.
func (d *Dispatcher) MarkPaid(docType, name string) (string, error) {
	doc, err := d.resolve(docType, name)
	if err != nil {
		return "", err
	}
	if err := doc.MarkPaid(); err != nil {
		return "", fmt.Errorf("paid callback on %s %s failed: %w", docType, name, err)
	}
	d.log.Info("REFERENCE", fmt.Sprintf("Marked %s %s as paid", docType, name))
	return d.successRedirect(name), nil
}

// MarkCancelled invokes the cancellation callback. No entry point wires
// this yet; the capability is kept symmetric with MarkPaid.
func (d *Dispatcher) MarkCancelled(docType, name string) error {
	doc, err := d.resolve(docType, name)
	if err != nil {
		return err
	}
	if err := doc.MarkCancelled(); err != nil {
		return fmt.Errorf("cancel callback on %s %s failed: %w", docType, name, err)
	}
	d.log.Info("REFERENCE", fmt.Sprintf("Marked %s %s as cancelled", docType, name))
	return nil
}

// successRedirect picks the landing page: mapped cart page with the
// reference appended, order confirmation fallback, or the static success
// page when cart integration is off.
func (d *Dispatcher) successRedirect(name string) string {
	if !d.cart.Enabled {
		return d.baseURL + "/paypal-express-success"
	}
	if path, ok := SuccessPage(d.cart.SuccessPage).Path(); ok {
		return fmt.Sprintf("%s%s/%s", d.baseURL, path, name)
	}
	return d.baseURL + "/orders/" + name
}
