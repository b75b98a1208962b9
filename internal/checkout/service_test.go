package checkout_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-express-checkout/internal/checkout"
	"ms-express-checkout/internal/checkout/db"
	"ms-express-checkout/internal/gateway"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/models"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreatePayment(payment models.ExpressPayment) error {
	args := m.Called(payment)
	return args.Error(0)
}

func (m *MockDBLayer) GetPaymentByToken(token string) (*models.ExpressPayment, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExpressPayment), args.Error(1)
}

func (m *MockDBLayer) UpdatePayment(payment models.ExpressPayment) error {
	args := m.Called(payment)
	return args.Error(0)
}

func (m *MockDBLayer) CreateGatewayLog(entry models.GatewayLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

type MockNVPClient struct {
	mock.Mock
}

func (m *MockNVPClient) Send(params url.Values) (url.Values, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(url.Values), args.Error(1)
}

func (m *MockNVPClient) CheckoutURL(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPaymentCompleted(payment models.ExpressPayment) error {
	args := m.Called(payment)
	return args.Error(0)
}

func (m *MockPublisher) PublishPaymentFailed(token, reason string) error {
	args := m.Called(token, reason)
	return args.Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) MarkPaid(docType, name string) (string, error) {
	args := m.Called(docType, name)
	return args.String(0), args.Error(1)
}

const baseURL = "https://shop.example.com"

func newTestService(t *testing.T) (*checkout.Service, *MockDBLayer, *MockNVPClient, *MockPublisher, *MockDispatcher) {
	t.Helper()
	dbLayer := new(MockDBLayer)
	nvp := new(MockNVPClient)
	publisher := new(MockPublisher)
	dispatcher := new(MockDispatcher)
	service := checkout.NewService(dbLayer, nvp, publisher, dispatcher, baseURL, logger.NewLogger())
	return service, dbLayer, nvp, publisher, dispatcher
}

func TestSetExpressCheckoutRejectsUnsupportedCurrency(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	outcome, err := service.SetExpressCheckout(100, "INR", "")

	assert.Nil(t, outcome)
	var userErr *gateway.UserFacingError
	require.True(t, errors.As(err, &userErr))

	// Nothing reached the gateway and no record was created
	nvp.AssertNotCalled(t, "Send", mock.Anything)
	dbLayer.AssertNotCalled(t, "CreatePayment", mock.Anything)
}

func TestSetExpressCheckoutCreatesStartedRecord(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	nvp.On("Send", mock.MatchedBy(func(params url.Values) bool {
		return params.Get("METHOD") == "SetExpressCheckout" &&
			params.Get("PAYMENTREQUEST_0_PAYMENTACTION") == "SALE" &&
			params.Get("PAYMENTREQUEST_0_AMT") == "49.90" &&
			params.Get("PAYMENTREQUEST_0_CURRENCYCODE") == "USD" &&
			params.Get("RETURNURL") == baseURL+checkout.DetailPath &&
			params.Get("CANCELURL") == baseURL+checkout.CancelPagePath
	})).Return(url.Values{"ACK": {"Success"}, "TOKEN": {"T1"}}, nil)

	var created models.ExpressPayment
	dbLayer.On("CreatePayment", mock.AnythingOfType("models.ExpressPayment")).
		Run(func(args mock.Arguments) {
			created = args.Get(0).(models.ExpressPayment)
		}).Return(nil)

	nvp.On("CheckoutURL", "T1").
		Return("https://www.sandbox.paypal.com/cgi-bin/webscr?cmd=_express-checkout&token=T1", nil)

	outcome, err := service.SetExpressCheckout(49.90, "USD", "")
	require.NoError(t, err)

	assert.Equal(t, "T1", created.Token)
	assert.Equal(t, models.StatusStarted, created.Status)
	assert.Equal(t, 49.90, created.Amount)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, "{}", created.Data)
	assert.Contains(t, outcome.Redirect, "token=T1")

	dbLayer.AssertNumberOfCalls(t, "CreatePayment", 1)
}

func TestSetExpressCheckoutAttachesReference(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	nvp.On("Send", mock.Anything).Return(url.Values{"ACK": {"Success"}, "TOKEN": {"T2"}}, nil)
	nvp.On("CheckoutURL", "T2").Return("https://www.paypal.com/checkout?token=T2", nil)

	var created models.ExpressPayment
	dbLayer.On("CreatePayment", mock.AnythingOfType("models.ExpressPayment")).
		Run(func(args mock.Arguments) {
			created = args.Get(0).(models.ExpressPayment)
		}).Return(nil)

	_, err := service.SetExpressCheckout(10, "EUR", `{"doctype":"Sales Order","docname":"SO-0001"}`)
	require.NoError(t, err)

	assert.Equal(t, "Sales Order", created.ReferenceType)
	assert.Equal(t, "SO-0001", created.ReferenceName)
}

func TestSetExpressCheckoutGatewayFailurePropagates(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	gwErr := &gateway.GatewayError{Response: url.Values{"ACK": {"Failure"}}}
	nvp.On("Send", mock.Anything).Return(nil, gwErr)

	outcome, err := service.SetExpressCheckout(10, "USD", "")

	assert.Nil(t, outcome)
	var asGateway *gateway.GatewayError
	assert.True(t, errors.As(err, &asGateway))
	dbLayer.AssertNotCalled(t, "CreatePayment", mock.Anything)
}

func TestGetExpressCheckoutDetailsVerifiesPayer(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	nvp.On("Send", mock.MatchedBy(func(params url.Values) bool {
		return params.Get("METHOD") == "GetExpressCheckoutDetails" && params.Get("TOKEN") == "T1"
	})).Return(url.Values{"ACK": {"Success"}, "PAYERID": {"P1"}, "EMAIL": {"e@x.com"}}, nil)

	dbLayer.On("GetPaymentByToken", "T1").Return(&models.ExpressPayment{
		Token:    "T1",
		Status:   models.StatusStarted,
		Amount:   49.90,
		Currency: "USD",
	}, nil)

	var updated models.ExpressPayment
	dbLayer.On("UpdatePayment", mock.AnythingOfType("models.ExpressPayment")).
		Run(func(args mock.Arguments) {
			updated = args.Get(0).(models.ExpressPayment)
		}).Return(nil)

	outcome, err := service.GetExpressCheckoutDetails("T1")
	require.NoError(t, err)

	assert.Equal(t, "P1", updated.PayerID)
	assert.Equal(t, "e@x.com", updated.PayerEmail)
	assert.Equal(t, models.StatusVerified, updated.Status)
	assert.Equal(t, baseURL+checkout.ConfirmPath+"?token=T1", outcome.Redirect)
}

func TestGetExpressCheckoutDetailsUnknownToken(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	nvp.On("Send", mock.Anything).Return(url.Values{"ACK": {"Success"}, "PAYERID": {"P1"}, "EMAIL": {"e@x.com"}}, nil)
	dbLayer.On("GetPaymentByToken", "missing").Return(nil, db.ErrPaymentNotFound)

	outcome, err := service.GetExpressCheckoutDetails("missing")

	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, db.ErrPaymentNotFound)
	dbLayer.AssertNotCalled(t, "UpdatePayment", mock.Anything)
}

func TestGetExpressCheckoutDetailsNeverRegressesStatus(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	nvp.On("Send", mock.Anything).Return(url.Values{"ACK": {"Success"}, "PAYERID": {"P1"}, "EMAIL": {"e@x.com"}}, nil)
	dbLayer.On("GetPaymentByToken", "T1").Return(&models.ExpressPayment{
		Token:  "T1",
		Status: models.StatusCompleted,
	}, nil)

	var updated models.ExpressPayment
	dbLayer.On("UpdatePayment", mock.AnythingOfType("models.ExpressPayment")).
		Run(func(args mock.Arguments) {
			updated = args.Get(0).(models.ExpressPayment)
		}).Return(nil)

	_, err := service.GetExpressCheckoutDetails("T1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, updated.Status)
}

func TestConfirmPaymentCaptureRefused(t *testing.T) {
	service, dbLayer, nvp, publisher, _ := newTestService(t)

	dbLayer.On("GetPaymentByToken", "T1").Return(&models.ExpressPayment{
		Token:    "T1",
		Status:   models.StatusVerified,
		Amount:   49.90,
		Currency: "USD",
		PayerID:  "P1",
	}, nil)

	gwErr := &gateway.GatewayError{Response: url.Values{"ACK": {"Failure"}, "L_LONGMESSAGE0": {"Declined"}}}
	nvp.On("Send", mock.Anything).Return(nil, gwErr)

	var logged models.GatewayLog
	dbLayer.On("CreateGatewayLog", mock.AnythingOfType("models.GatewayLog")).
		Run(func(args mock.Arguments) {
			logged = args.Get(0).(models.GatewayLog)
		}).Return(nil)
	publisher.On("PublishPaymentFailed", "T1", mock.Anything).Return(nil)

	outcome, err := service.ConfirmPayment("T1")
	require.NoError(t, err)

	// The record stays Verified: no update, one audit row, failure page
	dbLayer.AssertNotCalled(t, "UpdatePayment", mock.Anything)
	dbLayer.AssertNumberOfCalls(t, "CreateGatewayLog", 1)
	assert.Equal(t, "T1", logged.Token)
	assert.Contains(t, logged.Error, "Declined")
	assert.Contains(t, logged.Params, "DoExpressCheckoutPayment")
	assert.Equal(t, baseURL+checkout.FailedPagePath, outcome.Redirect)
}

func TestConfirmPaymentSuccess(t *testing.T) {
	service, dbLayer, nvp, publisher, dispatcher := newTestService(t)

	payment := &models.ExpressPayment{
		Token:    "T1",
		Status:   models.StatusVerified,
		Amount:   49.90,
		Currency: "USD",
		PayerID:  "P1",
	}
	dbLayer.On("GetPaymentByToken", "T1").Return(payment, nil)

	nvp.On("Send", mock.MatchedBy(func(params url.Values) bool {
		return params.Get("METHOD") == "DoExpressCheckoutPayment" &&
			params.Get("PAYERID") == "P1" &&
			params.Get("TOKEN") == "T1" &&
			params.Get("PAYMENTREQUEST_0_AMT") == "49.90"
	})).Return(url.Values{
		"ACK":                         {"Success"},
		"PAYMENTINFO_0_TRANSACTIONID": {"X1"},
		"CORRELATIONID":               {"C1"},
	}, nil)

	var updated models.ExpressPayment
	dbLayer.On("UpdatePayment", mock.AnythingOfType("models.ExpressPayment")).
		Run(func(args mock.Arguments) {
			updated = args.Get(0).(models.ExpressPayment)
		}).Return(nil)
	publisher.On("PublishPaymentCompleted", mock.Anything).Return(nil)

	outcome, err := service.ConfirmPayment("T1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, "X1", updated.TransactionID)
	assert.Equal(t, "C1", updated.CorrelationID)
	assert.Equal(t, baseURL+checkout.SuccessPagePath, outcome.Redirect)

	// No reference attached, so no callback
	dispatcher.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestConfirmPaymentInvokesReferenceCallback(t *testing.T) {
	service, dbLayer, nvp, publisher, dispatcher := newTestService(t)

	dbLayer.On("GetPaymentByToken", "T1").Return(&models.ExpressPayment{
		Token:         "T1",
		Status:        models.StatusVerified,
		Amount:        10,
		Currency:      "EUR",
		PayerID:       "P1",
		ReferenceType: "Sales Order",
		ReferenceName: "SO-0001",
	}, nil)

	nvp.On("Send", mock.Anything).Return(url.Values{
		"ACK":                         {"Success"},
		"PAYMENTINFO_0_TRANSACTIONID": {"X1"},
		"CORRELATIONID":               {"C1"},
	}, nil)
	dbLayer.On("UpdatePayment", mock.Anything).Return(nil)
	publisher.On("PublishPaymentCompleted", mock.Anything).Return(nil)
	dispatcher.On("MarkPaid", "Sales Order", "SO-0001").
		Return(baseURL+"/orders/SO-0001", nil)

	outcome, err := service.ConfirmPayment("T1")
	require.NoError(t, err)

	dispatcher.AssertNumberOfCalls(t, "MarkPaid", 1)
	assert.Equal(t, baseURL+"/orders/SO-0001", outcome.Redirect)
}

func TestConfirmPaymentUnknownToken(t *testing.T) {
	service, dbLayer, nvp, _, _ := newTestService(t)

	dbLayer.On("GetPaymentByToken", "missing").Return(nil, db.ErrPaymentNotFound)

	outcome, err := service.ConfirmPayment("missing")

	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, db.ErrPaymentNotFound)
	nvp.AssertNotCalled(t, "Send", mock.Anything)
}
