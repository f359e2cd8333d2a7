package secretsweb

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// HandleUserFunc is called after a successful authentication event with the
// resolved user. token is nil for local auth (no OAuth tokens).
type HandleUserFunc func(authtype string, provider string, token *oauth2.Token, user *User, w http.ResponseWriter, r *http.Request)

// AuthErrorHandler reports an authentication or signup failure to the user.
// The message is already generic; the underlying cause was logged.
type AuthErrorHandler func(message string, w http.ResponseWriter, r *http.Request)

// LocalAuth allows local username/password based authentication.
type LocalAuth struct {
	// Validates credentials during login
	ValidateCredentials CredentialsValidator

	// Validates credentials during signup
	ValidateSignup SignupValidator

	// Creates a new user (for signup)
	CreateUser CreateUserFunc

	// Form field names
	UsernameField string
	PasswordField string

	// Handler called after successful authentication
	HandleUser HandleUserFunc

	// OnLoginError is called when login fails. If nil, returns a 401.
	OnLoginError AuthErrorHandler

	// OnSignupError is called when signup fails. If nil, returns a 400.
	OnSignupError AuthErrorHandler
}

// HandleLogin authenticates a username/password pair. A missing user and a
// wrong password produce the same generic failure so account existence is
// never enumerable through this endpoint.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if a.ValidateCredentials == nil {
		http.Error(w, "Login not configured", http.StatusInternalServerError)
		return
	}

	username, password, err := a.parseLoginForm(r)
	if err != nil {
		a.handleLoginError(err.Error(), w, r)
		return
	}

	user, err := a.ValidateCredentials(r.Context(), username, password)
	if err != nil || user == nil {
		if err != nil {
			log.Println("error validating user: ", err)
		}
		a.handleLoginError("Invalid username or password", w, r)
		return
	}

	a.HandleUser("local", "local", nil, user, w, r)
}

// HandleSignup processes user registration. On success the new user is
// logged in immediately (auto-login after registration).
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.CreateUser == nil {
		http.Error(w, "Signup not configured", http.StatusInternalServerError)
		return
	}

	username, password, err := a.parseLoginForm(r)
	if err != nil {
		a.handleSignupError(err.Error(), w, r)
		return
	}
	creds := &Credentials{Username: username, Password: password}

	validator := a.ValidateSignup
	if validator == nil {
		validator = DefaultSignupValidator
	}
	if err := validator(creds); err != nil {
		a.handleSignupError(err.Error(), w, r)
		return
	}

	user, err := a.CreateUser(r.Context(), creds)
	if err != nil {
		log.Println("error creating user: ", err)
		if errors.Is(err, ErrUsernameTaken) {
			// Same generic message as any other signup failure; the cause
			// stays in the server log.
			a.handleSignupError("Unable to register with that username", w, r)
		} else {
			a.handleSignupError("Registration failed", w, r)
		}
		return
	}

	a.HandleUser("local", "local", nil, user, w, r)
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (username, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	usernameField := a.getUsernameField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		username = r.FormValue(usernameField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if u, ok := data[usernameField].(string); ok {
			username = u
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password required")
	}

	return username, password, nil
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) handleLoginError(message string, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil {
		a.OnLoginError(message, w, r)
		return
	}
	http.Error(w, message, http.StatusUnauthorized)
}

func (a *LocalAuth) handleSignupError(message string, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil {
		a.OnSignupError(message, w, r)
		return
	}
	http.Error(w, message, http.StatusBadRequest)
}
