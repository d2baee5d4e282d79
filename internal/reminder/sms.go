package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioSMSDriver delivers reminders through the Twilio Messages REST API.
type TwilioSMSDriver struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

func NewTwilioSMSDriver(accountSID, authToken, from string) *TwilioSMSDriver {
	return &TwilioSMSDriver{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultTwilioBaseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the API host, used by tests.
func (d *TwilioSMSDriver) WithBaseURL(baseURL string) *TwilioSMSDriver {
	d.baseURL = strings.TrimRight(baseURL, "/")
	return d
}

func (d *TwilioSMSDriver) Channel() Channel {
	return SMS
}

// Send posts the message and returns the provider message SID as the receipt.
func (d *TwilioSMSDriver) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", &DeliveryError{Channel: SMS, Err: ErrNoDestination}
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", d.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", d.baseURL, d.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &DeliveryError{Channel: SMS, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.accountSID, d.authToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &DeliveryError{Channel: SMS, Err: err}
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &DeliveryError{
			Channel: SMS,
			Err:     fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))),
		}
	}

	var result struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", &DeliveryError{Channel: SMS, Err: fmt.Errorf("decode provider response: %w", err)}
	}
	return result.Sid, nil
}
