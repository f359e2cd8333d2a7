package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type GoogleOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the URL to fetch user info from. Defaults to Google's
	// userinfo API. Can be overridden for testing.
	UserInfoURL string
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL"))
	}

	out := GoogleOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleUser),
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
	out.BaseOAuth2.oauthConfig.Endpoint = google.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.profile",
	}

	return &out
}

// HandleCallback receives the provider redirect: it verifies the state
// cookie, exchanges the authorization code and fetches the userinfo document
// before handing off to HandleUser. Any failure sends the client to
// AuthFailureUrl; the cause only goes to the log.
func (g *GoogleOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie("oauthstate")
	if oauthState == nil {
		log.Println("oauth state is nil")
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			MaxAge: 0,
		})
		slog.Info("invalid oauth google state", "state", r.FormValue("state"))
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}

	// Get auth token
	var userInfo map[string]any
	code := r.FormValue("code")
	token, err := g.oauthConfig.Exchange(g.ExchangeContext(), code)
	if err != nil {
		slog.Info("Invalid code exchange", "err", err)
	} else {
		userInfo, err = g.validateAccessToken(token)
		if err == nil {
			g.HandleUser("oauth", "google", token, userInfo, w, r)
		}
	}
	if err != nil {
		slog.Info("redirecting due to error ", "err", err)
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
	}
}

func (g *GoogleOAuth2) validateAccessToken(token *oauth2.Token) (userInfo map[string]any, err error) {
	data, err := g.getUserData(token)
	if err == nil {
		err = json.Unmarshal(data, &userInfo)
	}
	if err != nil {
		slog.Info("error validating login tokens", "err", err)
	}
	return
}

func (g *GoogleOAuth2) getUserData(token *oauth2.Token) ([]byte, error) {
	// Use the token to get user info from Google.
	req, err := http.NewRequest("GET", g.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	client := g.getHTTPClient()
	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %s", err.Error())
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed: %s", response.Status)
	}
	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %s", err.Error())
	}
	return contents, nil
}
