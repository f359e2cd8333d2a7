// Package secretsweb implements a small web application where registered
// users anonymously share a single free-text secret.
//
// Users sign up with a username and password or sign in with their Google
// account. Either way the application resolves the visitor to a single User
// record and establishes a cookie-backed session. Authenticated users can
// submit one secret; the shared board lists every non-empty secret with no
// attribution.
//
// # Architecture
//
// User: one registrant. A user carries a local credential (bcrypt password
// hash), a Google subject ID, or both, plus the optional secret text.
//
// UserStore: the persistence contract. Three implementations ship with the
// app: a JSON-file store for development and tests (stores), a SQL store via
// GORM (stores/gorm), and a Google Cloud Datastore store (stores/gae).
//
// Auth: session establishment. A successful login puts the user ID into the
// scs-managed session and issues a signed JWT cookie alongside it, so the
// middleware can recover identity from either.
//
// # Basic Usage
//
// Wire a store, the OAuth client, and the app:
//
//	users := stores.NewFSUserStore(storagePath)
//	app := secretsweb.New("Secretsweb", users)
//	app.Google = oauth2.NewGoogleOAuth2(clientId, clientSecret, callbackUrl, app.HandleOAuthUser)
//	http.ListenAndServe(":3000", app.Handler())
//
// # Security
//
// Passwords are hashed with bcrypt at default cost. Login failures never
// reveal whether the username exists: a missing user and a wrong password
// produce the same response, and a dummy bcrypt comparison runs in the
// missing-user case so the two paths cost the same. Session cookies are
// managed by scs; the auth-token cookie is an HS256 JWT carrying only the
// user ID.
//
// There is no rate limiting or lockout on failed logins.
//
// # Testing
//
// Handlers are tested without a running server via httptest. The OAuth flow
// is tested against a mock provider with injectable token and userinfo
// endpoints. Tests use the filesystem store in temporary directories for
// isolation.
package secretsweb
