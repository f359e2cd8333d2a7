package secretsweb

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EnsureDefaults fills in the config the app was not given explicitly.
func (a *App) EnsureDefaults() *App {
	// ensure some defaults
	if a.AppName == "" {
		a.AppName = "Secretsweb"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("SECRETSWEB_JWT_SECRET_KEY"))
		if a.JWTSecretKey == "" {
			a.JWTSecretKey = "MyTestJWTSecretKey123456"
		}
	}
	if a.LoginURL == "" {
		a.LoginURL = "/login"
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	if a.Middleware.SessionGetter == nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.Get(r.Context(), param)
		}
	}
	if a.Middleware.GetRedirURL == nil {
		a.Middleware.GetRedirURL = func(r *http.Request) string {
			return a.LoginURL
		}
	}
	if a.Middleware.ValidateUser == nil {
		// The gate requires a live user record, not just a session: a user
		// deleted after the session was issued deserializes to not-found and
		// the request is treated as unauthenticated.
		a.Middleware.ValidateUser = func(r *http.Request, userId string) bool {
			_, err := a.DeserializeUser(r)
			return err == nil
		}
	}
	return a
}

func (a *App) verifyJWT(tokenString string) (loggedInUserId string, t any, err error) {
	// Parse the token with the secret key
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})

	// Check for verification errors
	if err != nil {
		return "", nil, err
	}

	// Check if the token is valid
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}

// SerializeUser establishes a session for the user: only the user ID goes
// into the scs session, and a signed JWT carrying the same ID is set as a
// cookie on every configured domain. The password hash never leaves the
// store.
func (a *App) SerializeUser(user *User, w http.ResponseWriter, r *http.Request) string {
	return a.setLoggedInUser(user, w, r)
}

// ClearUser destroys the session and expires the auth cookies.
func (a *App) ClearUser(w http.ResponseWriter, r *http.Request) {
	a.setLoggedInUser(nil, w, r)
}

// DeserializeUser resolves the request's session back to a live user record.
// Any failure - no session, bad token, user gone from the store - comes back
// as ErrUserNotFound; callers treat the request as unauthenticated rather
// than erroring.
func (a *App) DeserializeUser(r *http.Request) (*User, error) {
	a.EnsureDefaults()
	userID := a.Middleware.GetLoggedInUserId(r)
	if userID == "" {
		return nil, ErrUserNotFound
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Generic helper to set the auth token and logged in user ID on the cookie
// domains we care about. Passing nil "unsets/logs out" the user.
func (a *App) setLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()
	domains := a.CookieDomains
	if slices.Index(a.CookieDomains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	tokenString := ""
	if user != nil {
		a.Session.Put(r.Context(), "loggedInUserId", user.ID)

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": user.ID,
			"iss": a.JwtIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
		})
		var err error
		tokenString, err = token.SignedString([]byte(a.JWTSecretKey))
		if err != nil {
			slog.Info("error signing token", "err", err)
		}
		a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
	} else {
		// clear the session and cookie values
		if err := a.Session.Destroy(r.Context()); err != nil {
			slog.Warn("error clearing session", "err", err)
		}
	}

	for _, cookieDomain := range domains {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			Value:  "",
			MaxAge: -1, Expires: time.Now(),
			Domain: cookieDomain,
			Path:   "/",
		})

		if user != nil {
			http.SetCookie(w, &http.Cookie{
				Name:     a.AuthTokenSessionVar,
				Value:    tokenString,
				Domain:   cookieDomain,
				Path:     "/",
				HttpOnly: true,
				Expires:  time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
	}
	return tokenString
}
