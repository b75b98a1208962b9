package qr

import (
	"github.com/skip2/go-qrcode"
)

// URLProvider resolves the hosted approval page for a checkout token.
type URLProvider interface {
	CheckoutURL(token string) (string, error)
}

// Generator renders the hosted approval URL as a QR code so a checkout
// started on one screen can be approved on a phone.
type Generator struct {
	Gateway URLProvider
}

func NewGenerator(gw URLProvider) *Generator {
	return &Generator{Gateway: gw}
}

// ApprovalQR returns a PNG QR code pointing at the approval page.
func (g *Generator) ApprovalQR(token string) ([]byte, error) {
	approvalURL, err := g.Gateway.CheckoutURL(token)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(approvalURL, qrcode.Medium, 256)
}
