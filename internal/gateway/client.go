package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ms-express-checkout/internal/logger"
)

const apiVersion = "98"

const (
	liveAPIURL    = "https://api-3t.paypal.com/nvp"
	sandboxAPIURL = "https://api-3t.sandbox.paypal.com/nvp"

	liveCheckoutURL    = "https://www.paypal.com/cgi-bin/webscr?cmd=_express-checkout&token="
	sandboxCheckoutURL = "https://www.sandbox.paypal.com/cgi-bin/webscr?cmd=_express-checkout&token="
)

// Settings is the merged credential set the client signs requests with.
// APIURL, when set, overrides the sandbox/live endpoint selection and
// points the client at an NVP simulator.
type Settings struct {
	APIUsername string `json:"api_username"`
	APIPassword string `json:"api_password"`
	Signature   string `json:"signature"`
	Sandbox     bool   `json:"sandbox"`
	APIURL      string `json:"api_url,omitempty"`
}

// SettingsProvider resolves the current gateway settings, with whatever
// override precedence the implementation applies.
type SettingsProvider interface {
	GatewaySettings() (*Settings, error)
}

// GatewayError means the gateway answered but did not acknowledge the
// call with ACK=Success. It carries the full parsed response so the
// caller can log or persist it.
type GatewayError struct {
	Response url.Values
}

func (e *GatewayError) Error() string {
	ack := e.Response.Get("ACK")
	if msg := e.Response.Get("L_LONGMESSAGE0"); msg != "" {
		return fmt.Sprintf("gateway returned ACK=%s: %s", ack, msg)
	}
	return fmt.Sprintf("gateway returned ACK=%s: %s", ack, e.Response.Encode())
}

// Client talks to the classic NVP API: URL-encoded POST out, query-string
// body back. One outbound call per Send, no retries.
type Client struct {
	settings SettingsProvider
	client   *http.Client
	log      *logger.Logger
}

func NewClient(settings SettingsProvider, client *http.Client, log *logger.Logger) *Client {
	return &Client{settings: settings, client: client, log: log}
}

// credentialParams builds the authentication fields every NVP call carries.
func (c *Client) credentialParams() (url.Values, *Settings, error) {
	settings, err := c.settings.GatewaySettings()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve gateway settings: %w", err)
	}

	params := url.Values{}
	params.Set("USER", settings.APIUsername)
	params.Set("PWD", settings.APIPassword)
	params.Set("SIGNATURE", settings.Signature)
	params.Set("VERSION", apiVersion)
	return params, settings, nil
}

// CheckoutURL returns the hosted approval page for a token, sandbox or
// live depending on the settings flag.
func (c *Client) CheckoutURL(token string) (string, error) {
	settings, err := c.settings.GatewaySettings()
	if err != nil {
		return "", fmt.Errorf("failed to resolve gateway settings: %w", err)
	}
	if settings.Sandbox {
		return sandboxCheckoutURL + url.QueryEscape(token), nil
	}
	return liveCheckoutURL + url.QueryEscape(token), nil
}

// Send signs params with the credential fields, posts them to the NVP
// endpoint and parses the response body. A non-Success ACK comes back as
// a *GatewayError carrying the parsed response.
func (c *Client) Send(params url.Values) (url.Values, error) {
	signed, settings, err := c.credentialParams()
	if err != nil {
		return nil, err
	}
	for key, values := range params {
		for _, value := range values {
			signed.Add(key, value)
		}
	}

	endpoint := liveAPIURL
	if settings.Sandbox {
		endpoint = sandboxAPIURL
	}
	if settings.APIURL != "" {
		endpoint = settings.APIURL
	}

	method := params.Get("METHOD")
	c.log.LogGateway(method, fmt.Sprintf("Sending NVP request to %s", endpoint))

	resp, err := c.client.Post(endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(signed.Encode()))
	if err != nil {
		c.log.Error("GATEWAY", fmt.Sprintf("NVP request failed: %v", err))
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}

	if parsed.Get("ACK") != "Success" {
		c.log.Error("GATEWAY", fmt.Sprintf("NVP call %s not acknowledged: ACK=%s", method, parsed.Get("ACK")))
		return nil, &GatewayError{Response: parsed}
	}

	c.log.LogGateway(method, "NVP call acknowledged")
	return parsed, nil
}
