package secretsweb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type userParamNameKey string

// Middleware resolves the logged-in user for each request and gates access
// to protected routes. The session is consulted first; the signed auth-token
// cookie (or Authorization header) is the fallback.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)

	// ValidateUser reports whether a resolved user id still maps to a live
	// user. When set, EnsureUser treats ids that fail validation as
	// unauthenticated, so a session outliving its user record locks the
	// gate instead of erroring downstream.
	ValidateUser func(r *http.Request, userId string) bool
}

// Ensures that config values have reasonable defaults.
func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = "loggedInUserId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// Get the ID of the logged in user from the current request
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	v := r.Context().Value(userParamNameKey(a.UserParamName))
	if v != nil {
		loggedInUserId := v.(string)
		if loggedInUserId != "" {
			return loggedInUserId
		}
	}

	userParam := a.SessionGetter(r, a.UserParamName)
	if userParam != "" && userParam != nil {
		return userParam.(string)
	}

	if a.VerifyToken == nil {
		slog.Warn("No auth token verifier found.  Please set one")
		return ""
	}

	// Otherwise check the Auth header and the auth token cookie
	authTokens := r.Header.Values(a.AuthTokenHeaderName)
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			// a cookie may be sent instead when making non-api calls
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		loggedInUserId, _, err := a.VerifyToken(authToken)
		if err == nil && loggedInUserId != "" {
			return loggedInUserId
		} else if err != nil {
			slog.Warn("Error verifying token: ", "error", err)
		}
	}

	return ""
}

// ExtractUser fetches the user from the request and makes the UserId
// available to other handlers via the request context.
//
// Note this does not perform any redirects if a valid user does not exist.
// To also enforce a user exists, use the EnsureUser handler which both
// extracts the user and ensures one is logged in.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.getLoggedInUserId(r)
			// set the logged in user ID as the request scoped variable
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// EnsureUser gates a protected route: without a valid deserialized user the
// client is redirected to the login page (never an error status).
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.getLoggedInUserId(r)
			if userParam != "" && a.ValidateUser != nil && !a.ValidateUser(r, userParam) {
				userParam = ""
			}
			if userParam == "" {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					originalUrl := r.URL.Path
					encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					// otherwise a 401
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			} else {
				// set the logged in user ID as the request scoped variable
				next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
			}
		},
	)
}

// Gets the logged in user from the session first
func (a *Middleware) getLoggedInUserId(r *http.Request) string {
	return a.GetLoggedInUserId(r)
}

// Set the logged in user id into the request's variable set
// This will make it available to all other handlers downstream
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}
