package oauth2

import (
	"context"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

// BaseOAuth2 carries the provider-agnostic parts of an OAuth2 login flow:
// the client configuration, the redirect handler and the failure target.
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// Where the client is sent when the handshake fails.
	AuthFailureUrl string

	// Called after a successful exchange with the provider token and userinfo.
	HandleUser HandleUserFunc

	oauthConfig oauth2.Config

	// httpClient can be overridden for testing.
	httpClient *http.Client
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	return &BaseOAuth2{
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		AuthFailureUrl: "/login",
		HandleUser:     handleUser,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

// Config exposes the underlying oauth2 config so callers (and tests) can
// override endpoints and scopes.
func (b *BaseOAuth2) Config() *oauth2.Config {
	return &b.oauthConfig
}

// SetHTTPClient overrides the HTTP client used for the token exchange and
// userinfo calls. Intended for tests.
func (b *BaseOAuth2) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.httpClient != nil {
		return b.httpClient
	}
	return http.DefaultClient
}

// ExchangeContext returns the context to use for the code exchange, wiring
// in the injectable client when one is set.
func (b *BaseOAuth2) ExchangeContext() context.Context {
	ctx := context.Background()
	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	return ctx
}

// HandleRedirect begins the handshake by redirecting to the provider's
// authorization endpoint.
func (b *BaseOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	OauthRedirector(&b.oauthConfig)(w, r)
}
