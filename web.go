package secretsweb

import (
	"bytes"
	"html/template"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	oauth2lib "golang.org/x/oauth2"

	googleauth "github.com/panyam/secretsweb/oauth2"
)

// App wires the route controller to its collaborators: the user store, the
// local and Google authenticators, the session manager and the templates.
// Configure it once at startup; it is read-only afterwards.
type App struct {
	Session    *scs.SessionManager
	Middleware Middleware

	// Optional name that can be used as a prefix for all required vars
	AppName string

	// Name of the session variable where the auth token is stored
	AuthTokenSessionVar string

	// Must be passed in
	Users UserStore

	// Local username/password authentication
	Local *LocalAuth

	// Google OAuth login. Optional; the /auth/google routes are only mounted
	// when set.
	Google *googleauth.GoogleOAuth2

	// Where unauthenticated requests to protected routes are sent
	LoginURL string

	// All the domains where the auth token cookies will be set on a login success or logout
	CookieDomains []string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long is a session cookie valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int

	templates *template.Template
}

// New creates an App over the given store with default local auth wiring.
func New(appName string, users UserStore) *App {
	a := &App{AppName: appName, Users: users}
	a.Session = scs.New()
	a.EnsureDefaults()
	a.Session.Lifetime = time.Duration(a.SessionTimeoutInSeconds) * time.Second
	a.Local = &LocalAuth{
		ValidateCredentials: NewCredentialsValidator(users),
		CreateUser:          NewCreateUserFunc(users),
		HandleUser:          a.handleAuthSuccess,
		OnLoginError: func(message string, w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			a.render(w, r, "login", &pageData{Error: message})
		},
		OnSignupError: func(message string, w http.ResponseWriter, r *http.Request) {
			// back to the originating form; the cause stays server-side
			http.Redirect(w, r, "/register", http.StatusFound)
		},
	}
	a.templates = parseTemplates()
	return a
}

// Handler returns the app's HTTP surface: the session loader wrapped around
// the router, with the protected routes behind the authorization gate.
func (a *App) Handler() http.Handler {
	a.EnsureDefaults()
	router := mux.NewRouter()

	router.HandleFunc("/", a.handleHome).Methods("GET")
	router.HandleFunc("/register", a.handleRegisterForm).Methods("GET")
	router.HandleFunc("/register", a.Local.HandleSignup).Methods("POST")
	router.HandleFunc("/login", a.handleLoginForm).Methods("GET")
	router.HandleFunc("/login", a.Local.HandleLogin).Methods("POST")
	router.HandleFunc("/secrets", a.handleSecrets).Methods("GET")
	router.HandleFunc("/logout", a.handleLogout).Methods("GET")
	router.Handle("/submit", a.Middleware.EnsureUser(http.HandlerFunc(a.handleSubmitForm))).Methods("GET")
	router.Handle("/submit", a.Middleware.EnsureUser(http.HandlerFunc(a.handleSubmit))).Methods("POST")

	if a.Google != nil {
		router.HandleFunc("/auth/google", a.Google.HandleRedirect).Methods("GET")
		// The provider redirects back here with the authorization result
		router.HandleFunc("/auth/google/secrets", a.Google.HandleCallback).Methods("GET")
	}

	return a.Session.LoadAndSave(a.Middleware.ExtractUser(router))
}

// handleAuthSuccess is the shared success hook for local login, signup and
// the OAuth callback: establish the session, go to the secrets board.
func (a *App) handleAuthSuccess(authtype, provider string, token *oauth2lib.Token, user *User, w http.ResponseWriter, r *http.Request) {
	a.SerializeUser(user, w, r)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// HandleOAuthUser adapts the oauth2 callback to the user store: the
// provider-assigned subject ID resolves to exactly one local user via the
// store's atomic find-or-create.
func (a *App) HandleOAuthUser(authtype, provider string, token *oauth2lib.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	googleID, _ := userInfo["id"].(string)
	if googleID == "" {
		slog.Info("oauth userinfo has no subject id", "provider", provider)
		http.Redirect(w, r, a.LoginURL, http.StatusTemporaryRedirect)
		return
	}

	user, created, err := a.Users.FindOrCreateByGoogleID(r.Context(), googleID)
	if err != nil {
		log.Println("error resolving oauth user: ", err)
		http.Redirect(w, r, a.LoginURL, http.StatusTemporaryRedirect)
		return
	}
	if created {
		log.Printf("Created user %s for %s login", user.ID, provider)
	}

	a.handleAuthSuccess(authtype, provider, token, user, w, r)
}

type pageData struct {
	LoggedIn bool
	Error    string
	Secrets  []string
}

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "home", &pageData{})
}

func (a *App) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "register", &pageData{})
}

func (a *App) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login", &pageData{})
}

// handleSecrets lists every non-empty secret. The board is shared and
// anonymous: usernames never appear in this response.
func (a *App) handleSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := a.Users.ListSecrets(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	a.render(w, r, "secrets", &pageData{Secrets: secrets})
}

func (a *App) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "submit", &pageData{})
}

func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.serverError(w, r, err)
		return
	}
	userID := a.Middleware.GetLoggedInUserId(r)
	secret := r.FormValue("secret")

	// Unconditional overwrite, last write wins
	if err := a.Users.SetSecret(r.Context(), userID, secret); err != nil {
		a.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.ClearUser(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// render executes the named view into a buffer first so a template failure
// becomes a 500 instead of a half-written page.
func (a *App) render(w http.ResponseWriter, r *http.Request, name string, data *pageData) {
	data.LoggedIn = a.Middleware.GetLoggedInUserId(r) != ""
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		a.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// serverError is the single store-error-to-response mapping: log the cause,
// show the user a generic 500.
func (a *App) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}
