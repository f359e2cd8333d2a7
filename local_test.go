package secretsweb_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	sw "github.com/panyam/secretsweb"
	"github.com/panyam/secretsweb/stores"
	"golang.org/x/oauth2"
)

// setupTestStore creates a temporary storage directory backed user store
func setupTestStore(t *testing.T) (sw.UserStore, string) {
	tmpDir, err := os.MkdirTemp("", "secretsweb-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	return stores.NewFSUserStore(tmpDir), tmpDir
}

func cleanup(t *testing.T, tmpDir string) {
	if err := os.RemoveAll(tmpDir); err != nil {
		t.Logf("Warning: failed to cleanup temp dir: %v", err)
	}
}

// jsonSuccessHandler is a HandleUser that just reports success, so auth
// handlers can be tested without the full app wiring.
func jsonSuccessHandler(authtype string, provider string, token *oauth2.Token, user *sw.User, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "userId": user.ID})
}

func postForm(handler http.HandlerFunc, path string, formData map[string]string) *httptest.ResponseRecorder {
	form := url.Values{}
	for k, v := range formData {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// TestSignupFlow tests user registration
func TestSignupFlow(t *testing.T) {
	users, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	localAuth := &sw.LocalAuth{
		CreateUser: sw.NewCreateUserFunc(users),
		HandleUser: jsonSuccessHandler,
	}

	tests := []struct {
		name           string
		formData       map[string]string
		expectedStatus int
		checkError     string
	}{
		{
			name: "successful signup",
			formData: map[string]string{
				"username": "testuser",
				"password": "password123",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "duplicate username",
			formData: map[string]string{
				"username": "testuser",
				"password": "otherpassword",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "Unable to register",
		},
		{
			name: "weak password",
			formData: map[string]string{
				"username": "testuser2",
				"password": "pass",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "at least 8 characters",
		},
		{
			name: "username too short",
			formData: map[string]string{
				"username": "ab",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "3-20 characters",
		},
		{
			name: "username with invalid characters",
			formData: map[string]string{
				"username": "bad user!",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "letters, numbers",
		},
		{
			name: "missing password",
			formData: map[string]string{
				"username": "testuser3",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(localAuth.HandleSignup, "/register", tt.formData)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.checkError != "" && !strings.Contains(rr.Body.String(), tt.checkError) {
				t.Errorf("Expected error containing %q, got: %s", tt.checkError, rr.Body.String())
			}
		})
	}
}

// TestLoginFlow tests username/password authentication
func TestLoginFlow(t *testing.T) {
	users, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	createUser := sw.NewCreateUserFunc(users)
	localAuth := &sw.LocalAuth{
		CreateUser:          createUser,
		ValidateCredentials: sw.NewCredentialsValidator(users),
		HandleUser:          jsonSuccessHandler,
	}

	testPassword := "password123"
	if _, err := createUser(context.Background(), &sw.Credentials{Username: "loginuser", Password: testPassword}); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	tests := []struct {
		name           string
		username       string
		password       string
		expectedStatus int
	}{
		{
			name:           "successful login",
			username:       "loginuser",
			password:       testPassword,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			username:       "loginuser",
			password:       "wrongpassword",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "non-existent user",
			username:       "nonexistent",
			password:       testPassword,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(localAuth.HandleLogin, "/login", map[string]string{
				"username": tt.username,
				"password": tt.password,
			})

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

// TestLoginFailuresLookAlike verifies a wrong password and an unknown
// username produce byte identical responses, so the login endpoint cannot be
// used to probe which usernames exist.
func TestLoginFailuresLookAlike(t *testing.T) {
	users, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	createUser := sw.NewCreateUserFunc(users)
	localAuth := &sw.LocalAuth{
		CreateUser:          createUser,
		ValidateCredentials: sw.NewCredentialsValidator(users),
		HandleUser:          jsonSuccessHandler,
	}
	if _, err := createUser(context.Background(), &sw.Credentials{Username: "realuser", Password: "password123"}); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	wrongPassword := postForm(localAuth.HandleLogin, "/login", map[string]string{
		"username": "realuser",
		"password": "wrongpassword",
	})
	unknownUser := postForm(localAuth.HandleLogin, "/login", map[string]string{
		"username": "ghostuser",
		"password": "wrongpassword",
	})

	if wrongPassword.Code != unknownUser.Code {
		t.Errorf("Status codes differ: %d vs %d", wrongPassword.Code, unknownUser.Code)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Errorf("Bodies differ: %q vs %q", wrongPassword.Body.String(), unknownUser.Body.String())
	}
}

// TestLoginJSONBody verifies credentials can also be posted as JSON
func TestLoginJSONBody(t *testing.T) {
	users, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	createUser := sw.NewCreateUserFunc(users)
	localAuth := &sw.LocalAuth{
		ValidateCredentials: sw.NewCredentialsValidator(users),
		HandleUser:          jsonSuccessHandler,
	}
	if _, err := createUser(context.Background(), &sw.Credentials{Username: "jsonuser", Password: "password123"}); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	body := `{"username": "jsonuser", "password": "password123"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	localAuth.HandleLogin(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d. Body: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
}

// TestDefaultValidator tests the default signup validator
func TestDefaultValidator(t *testing.T) {
	tests := []struct {
		name      string
		creds     *sw.Credentials
		expectErr bool
		errText   string
	}{
		{
			name:      "valid credentials",
			creds:     &sw.Credentials{Username: "testuser", Password: "password123"},
			expectErr: false,
		},
		{
			name:      "username too short",
			creds:     &sw.Credentials{Username: "ab", Password: "password123"},
			expectErr: true,
			errText:   "username",
		},
		{
			name:      "username too long",
			creds:     &sw.Credentials{Username: strings.Repeat("a", 21), Password: "password123"},
			expectErr: true,
			errText:   "username",
		},
		{
			name:      "username with spaces",
			creds:     &sw.Credentials{Username: "bad user", Password: "password123"},
			expectErr: true,
			errText:   "letters",
		},
		{
			name:      "password too short",
			creds:     &sw.Credentials{Username: "testuser", Password: "pass"},
			expectErr: true,
			errText:   "at least 8 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sw.DefaultSignupValidator(tt.creds)
			if tt.expectErr {
				if err == nil {
					t.Error("Expected error but got nil")
				} else if tt.errText != "" && !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("Expected error containing %q, got: %v", tt.errText, err)
				}
			} else if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}
