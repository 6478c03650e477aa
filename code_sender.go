package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultCodeMessage is the SMS body template, %s is the code
const DefaultCodeMessage = "Your verification code is %s"

// LogCodeSender only logs the code. Use it in development.
func LogCodeSender(logger Logger) CodeSender {
	logger = normalizeLogger(logger)
	return CodeSenderFunc(func(_ context.Context, phone, code string) error {
		logger.Debug("verification code", "phone_number", phone, "code", code)
		return nil
	})
}

// TwilioSender delivers codes through the Twilio messages API
type TwilioSender struct {
	AccountSID string
	AuthToken  string
	From       string
	Message    string
	BaseURL    string
	HTTPClient *http.Client
}

// NewTwilioSender creates a sender with a bounded HTTP client
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		Message:    DefaultCodeMessage,
		BaseURL:    "https://api.twilio.com",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendCode implements CodeSender
func (t *TwilioSender) SendCode(ctx context.Context, phone, code string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(t.BaseURL, "/"), t.AccountSID)

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", t.From)
	form.Set("Body", fmt.Sprintf(t.Message, code))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create sms request")
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send sms request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return goerrors.New("sms provider rejected message", goerrors.CategoryOperation).
			WithCode(http.StatusBadGateway).
			WithMetadata(map[string]any{
				"status": resp.StatusCode,
				"body":   string(body),
			})
	}
	return nil
}
