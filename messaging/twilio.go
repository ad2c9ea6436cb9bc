package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/utils"
)

type TwilioConfig struct {
	BaseURL         string
	AccountSid      string
	AuthToken       string
	From            string
	RateLimitPerMin int
	Timeout         time.Duration
}

func TwilioConfigFromEnv() TwilioConfig {
	return TwilioConfig{
		BaseURL:         config.StringFromEnv("TWILIO_API_BASE_URL", "https://api.twilio.com"),
		AccountSid:      config.StringFromEnv("TWILIO_ACCOUNT_SID", ""),
		AuthToken:       config.StringFromEnv("TWILIO_AUTH_TOKEN", ""),
		From:            config.StringFromEnv("TWILIO_WHATSAPP_FROM", ""),
		RateLimitPerMin: config.IntFromEnv("TWILIO_RATE_LIMIT_PER_MIN", 600),
		Timeout:         30 * time.Second,
	}
}

// TwilioClient sends WhatsApp messages through the Twilio Messages API.
type TwilioClient struct {
	baseURL    string
	accountSid string
	authToken  string
	from       string
	http       *http.Client
	limiter    <-chan time.Time
}

func NewTwilioClient(cfg TwilioConfig) (*TwilioClient, error) {
	if strings.TrimSpace(cfg.AccountSid) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio credentials are empty")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("twilio sender number is empty")
	}
	from := cfg.From
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &TwilioClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSid: cfg.AccountSid,
		authToken:  cfg.AuthToken,
		from:       from,
		http:       &http.Client{Timeout: timeout},
	}
	if cfg.RateLimitPerMin > 0 {
		c.limiter = time.Tick(time.Minute / time.Duration(cfg.RateLimitPerMin))
	}
	return c, nil
}

type twilioMessageResponse struct {
	Sid          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

type twilioErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (c *TwilioClient) Send(ctx context.Context, msg OutboundMessage) (SendResult, error) {
	if c.limiter != nil {
		select {
		case <-c.limiter:
		case <-ctx.Done():
			return SendResult{}, ctx.Err()
		}
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", c.from)
	if msg.Body != "" {
		form.Set("Body", msg.Body)
	}
	for _, m := range msg.MediaUrls {
		form.Add("MediaUrl", m)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, err
	}
	req.SetBasicAuth(c.accountSid, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr twilioErrorResponse
		if jerr := json.Unmarshal(body, &apiErr); jerr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return SendResult{}, &ProviderError{HTTPStatus: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
	}

	var parsed twilioMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SendResult{}, err
	}
	if parsed.ErrorCode != nil && *parsed.ErrorCode != 0 {
		return SendResult{}, &ProviderError{
			HTTPStatus: resp.StatusCode,
			Code:       *parsed.ErrorCode,
			Message:    utils.DereferencePtr(parsed.ErrorMessage),
		}
	}
	return SendResult{Sid: parsed.Sid, Status: parsed.Status}, nil
}
