package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	onesignal "github.com/OneSignal/onesignal-go-api/v2"
)

// DefaultOneSignalEndpoint is the OneSignal REST API base URL.
const DefaultOneSignalEndpoint = "https://api.onesignal.com"

const maxErrorBody = 512

// OneSignal sends notifications through the OneSignal REST API.
type OneSignal struct {
	appID string
	api   *onesignal.APIClient
}

// NewOneSignal creates a OneSignal client. An empty endpoint selects
// DefaultOneSignalEndpoint; timeout bounds each request.
func NewOneSignal(endpoint, appID, apiKey string, timeout time.Duration) *OneSignal {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultOneSignalEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cfg := onesignal.NewConfiguration()
	cfg.Servers = onesignal.ServerConfigurations{{URL: endpoint}}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	cfg.AddDefaultHeader("Authorization", "Basic "+apiKey)

	return &OneSignal{appID: appID, api: onesignal.NewAPIClient(cfg)}
}

// Send creates one OneSignal notification for msg. Player ids are
// OneSignal subscription ids. Any non-2xx response is an error carrying the
// start of the response body.
func (c *OneSignal) Send(ctx context.Context, msg Message) error {
	if len(msg.Tokens) == 0 {
		return ErrNoTokens
	}

	n := onesignal.NewNotification(c.appID)
	n.SetIncludeSubscriptionIds(msg.Tokens)
	n.SetHeadings(onesignal.StringMap{En: onesignal.PtrString(msg.Title)})
	n.SetContents(onesignal.StringMap{En: onesignal.PtrString(msg.Body)})
	if len(msg.Data) > 0 {
		n.SetData(msg.Data)
	}

	_, resp, err := c.api.DefaultApi.CreateNotification(ctx).Notification(*n).Execute()
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err == nil {
		return nil
	}

	var apiErr *onesignal.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		body := apiErr.Body()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fmt.Errorf("onesignal: unexpected status %s: %s", apiErr.Error(), strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("onesignal: send request: %w", err)
}
