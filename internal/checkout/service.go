package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ms-express-checkout/internal/gateway"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/models"
)

// Paths the flow redirects through. The entry point paths mirror the
// merchant site's method-call URL scheme; the page paths are static
// site pages and must be emitted verbatim.
const (
	DetailPath  = "/api/method/express_checkout.get_express_checkout_details"
	ConfirmPath = "/api/method/express_checkout.confirm_payment"

	CancelPagePath  = "/paypal-express-cancel"
	FailedPagePath  = "/paypal-express-failed"
	SuccessPagePath = "/paypal-express-success"
)

type DBLayer interface {
	CreatePayment(payment models.ExpressPayment) error
	GetPaymentByToken(token string) (*models.ExpressPayment, error)
	UpdatePayment(payment models.ExpressPayment) error
	CreateGatewayLog(entry models.GatewayLog) error
}

type NVPClient interface {
	Send(params url.Values) (url.Values, error)
	CheckoutURL(token string) (string, error)
}

type EventPublisher interface {
	PublishPaymentCompleted(payment models.ExpressPayment) error
	PublishPaymentFailed(token, reason string) error
}

type ReferenceDispatcher interface {
	MarkPaid(docType, name string) (redirect string, err error)
}

// Outcome is the redirect a completed operation hands back to the
// transport layer. Operations that fail return a typed error instead.
type Outcome struct {
	Redirect string
}

type Service struct {
	DB      DBLayer
	Gateway NVPClient
	Kafka   EventPublisher
	Refs    ReferenceDispatcher
	BaseURL string
	log     *logger.Logger
}

func NewService(db DBLayer, gw NVPClient, kafka EventPublisher, refs ReferenceDispatcher, baseURL string, log *logger.Logger) *Service {
	return &Service{DB: db, Gateway: gw, Kafka: kafka, Refs: refs, BaseURL: baseURL, log: log}
}

// SetExpressCheckout validates the currency, asks the gateway for a
// checkout token, persists a Started record and redirects the customer
// to the hosted approval page. A gateway failure here propagates to the
// caller untouched: nothing was persisted yet.
func (s *Service) SetExpressCheckout(amount float64, currency, data string) (*Outcome, error) {
	if err := gateway.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	data = normalizeData(data)

	params := url.Values{}
	params.Set("METHOD", "SetExpressCheckout")
	params.Set("PAYMENTREQUEST_0_PAYMENTACTION", "SALE")
	params.Set("PAYMENTREQUEST_0_AMT", strconv.FormatFloat(amount, 'f', 2, 64))
	params.Set("PAYMENTREQUEST_0_CURRENCYCODE", currency)
	params.Set("RETURNURL", s.BaseURL+DetailPath)
	params.Set("CANCELURL", s.BaseURL+CancelPagePath)

	response, err := s.Gateway.Send(params)
	if err != nil {
		return nil, err
	}

	token := response.Get("TOKEN")
	if token == "" {
		return nil, &gateway.GatewayError{Response: response}
	}

	payment := models.ExpressPayment{
		Token:     token,
		Status:    models.StatusStarted,
		Amount:    amount,
		Currency:  currency,
		Data:      data,
		CreatedAt: time.Now(),
	}
	if docType, docName, ok := referenceFromData(data); ok {
		payment.ReferenceType = docType
		payment.ReferenceName = docName
	}

	if err := s.DB.CreatePayment(payment); err != nil {
		return nil, err
	}
	s.log.LogPayment("STARTED", token, fmt.Sprintf("%s %.2f checkout token issued", currency, amount))

	redirect, err := s.Gateway.CheckoutURL(token)
	if err != nil {
		return nil, err
	}
	return &Outcome{Redirect: redirect}, nil
}

// GetExpressCheckoutDetails fetches the payer identity for a token the
// gateway redirected back to us, advances the record to Verified and
// redirects on to confirmation.
func (s *Service) GetExpressCheckoutDetails(token string) (*Outcome, error) {
	params := url.Values{}
	params.Set("METHOD", "GetExpressCheckoutDetails")
	params.Set("TOKEN", token)

	response, err := s.Gateway.Send(params)
	if err != nil {
		return nil, err
	}

	payment, err := s.DB.GetPaymentByToken(token)
	if err != nil {
		return nil, err
	}

	payment.PayerID = response.Get("PAYERID")
	payment.PayerEmail = response.Get("EMAIL")
	if payment.Status.Before(models.StatusVerified) {
		payment.Status = models.StatusVerified
	}
	if err := s.DB.UpdatePayment(*payment); err != nil {
		return nil, err
	}
	s.log.LogPayment("VERIFIED", token, "payer identity recorded")

	return &Outcome{Redirect: s.BaseURL + ConfirmPath + "?token=" + url.QueryEscape(token)}, nil
}

// ConfirmPayment submits the capture request. This is the only step with
// structured failure handling: a gateway refusal is audited durably and
// the customer lands on the failure page with the record left Verified.
func (s *Service) ConfirmPayment(token string) (*Outcome, error) {
	payment, err := s.DB.GetPaymentByToken(token)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("METHOD", "DoExpressCheckoutPayment")
	params.Set("PAYERID", payment.PayerID)
	params.Set("TOKEN", payment.Token)
	params.Set("PAYMENTREQUEST_0_PAYMENTACTION", "SALE")
	params.Set("PAYMENTREQUEST_0_AMT", strconv.FormatFloat(payment.Amount, 'f', 2, 64))
	params.Set("PAYMENTREQUEST_0_CURRENCYCODE", payment.Currency)

	response, err := s.Gateway.Send(params)
	if err != nil {
		var gwErr *gateway.GatewayError
		if !errors.As(err, &gwErr) {
			return nil, err
		}
		return s.auditCaptureFailure(token, params, gwErr)
	}

	// Reload before mutating: the approval redirect chain is sequential,
	// but the record may still have moved under us.
	payment, err = s.DB.GetPaymentByToken(token)
	if err != nil {
		return nil, err
	}
	payment.Status = models.StatusCompleted
	payment.TransactionID = response.Get("PAYMENTINFO_0_TRANSACTIONID")
	payment.CorrelationID = response.Get("CORRELATIONID")
	if err := s.DB.UpdatePayment(*payment); err != nil {
		return nil, err
	}
	s.log.LogPayment("COMPLETED", token, fmt.Sprintf("captured as transaction %s", payment.TransactionID))

	if err := s.Kafka.PublishPaymentCompleted(*payment); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish payment completed event for %s: %v", token, err))
	}

	redirect := s.BaseURL + SuccessPagePath
	if payment.ReferenceType != "" && payment.ReferenceName != "" {
		mapped, err := s.Refs.MarkPaid(payment.ReferenceType, payment.ReferenceName)
		if err != nil {
			s.log.Error("REFERENCE", fmt.Sprintf("Reference callback for %s failed: %v", token, err))
		} else if mapped != "" {
			redirect = mapped
		}
	}

	return &Outcome{Redirect: redirect}, nil
}

// auditCaptureFailure writes the append-only failure row and redirects
// to the failure page. The transaction record itself is not touched.
func (s *Service) auditCaptureFailure(token string, params url.Values, gwErr *gateway.GatewayError) (*Outcome, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		paramsJSON = []byte(params.Encode())
	}

	entry := models.GatewayLog{
		LogID:     uuid.NewString(),
		Token:     token,
		Error:     fmt.Sprintf("%s\n\n%s", gwErr.Error(), debug.Stack()),
		Params:    string(paramsJSON),
		CreatedAt: time.Now(),
	}
	if err := s.DB.CreateGatewayLog(entry); err != nil {
		return nil, err
	}
	s.log.LogPayment("FAILED", token, "capture refused by gateway, failure logged")

	if err := s.Kafka.PublishPaymentFailed(token, gwErr.Error()); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish payment failed event for %s: %v", token, err))
	}

	return &Outcome{Redirect: s.BaseURL + FailedPagePath}, nil
}

// normalizeData makes sure the opaque payload is stored as a JSON string.
func normalizeData(data string) string {
	if data == "" {
		return "{}"
	}
	if !json.Valid([]byte(data)) {
		encoded, err := json.Marshal(data)
		if err != nil {
			return "{}"
		}
		return string(encoded)
	}
	return data
}

// referenceFromData pulls the optional reference pair out of the opaque
// payload. Both fields must be present to attach a reference.
func referenceFromData(data string) (docType, docName string, ok bool) {
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return "", "", false
	}
	docType, _ = decoded["doctype"].(string)
	docName, _ = decoded["docname"].(string)
	if docType == "" || docName == "" {
		return "", "", false
	}
	return docType, docName, true
}
