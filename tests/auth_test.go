package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/testing/helpers"
)

/*
FEATURE: Account Registration and Sessions
DOMAIN: Authentication

ACCEPTANCE CRITERIA:
===================

AC-AUTH-001: Successful Registration
  GIVEN valid registration details
  WHEN a user registers
  THEN the account is created, a session cookie is set, and the password
  hash never appears in any response

AC-AUTH-002: Validation Failures Are Aggregated
  GIVEN a registration request with multiple invalid fields
  WHEN the user registers
  THEN a single 400 response lists every violated field

AC-AUTH-003: Duplicate Username
  GIVEN an existing account
  WHEN another user registers with the same username
  THEN the request is rejected with 409

AC-AUTH-004: Login Round Trip
  GIVEN a registered account
  WHEN the user logs in with correct credentials
  THEN a fresh session cookie is issued and grants access to /api/auth/user

AC-AUTH-005: Bad Credentials
  GIVEN a registered account
  WHEN the user logs in with the wrong password
  THEN the request is rejected with 401

AC-AUTH-006: Logout Invalidates the Session
  GIVEN a logged-in user
  WHEN they log out
  THEN the cookie is cleared and the old token no longer authenticates

AC-AUTH-007: Protected Route Requires a Session
  GIVEN no session cookie
  WHEN a client requests /api/auth/user
  THEN the request is rejected with 401
*/

func TestAuth_Register(t *testing.T) {
	// AC-AUTH-001: Successful Registration
	api := newTestAPI(t)

	resp := api.do(helpers.NewRequest(t, http.MethodPost, "/api/auth/register").
		WithBody(map[string]string{
			"username": "alice",
			"email":    "alice@test.local",
			"password": "supersecret1",
		}).Build())

	helpers.AssertStatus(t, resp, http.StatusCreated)
	helpers.AssertJSONContains(t, resp, map[string]interface{}{
		"message": "User registered successfully",
	})

	token := helpers.SessionToken(t, resp)
	if token == "" {
		t.Fatal("expected a session token in the registration response")
	}

	me := api.do(helpers.NewRequest(t, http.MethodGet, "/api/auth/user").
		WithSession(token).Build())
	helpers.AssertStatus(t, me, http.StatusOK)
	helpers.AssertJSONContains(t, me, map[string]interface{}{
		"username": "alice",
	})
	if body := me.Body.String(); containsHash(body) {
		t.Errorf("password hash leaked in response: %s", body)
	}
}

func TestAuth_RegisterValidation(t *testing.T) {
	// AC-AUTH-002: Validation Failures Are Aggregated
	api := newTestAPI(t)

	resp := api.do(helpers.NewRequest(t, http.MethodPost, "/api/auth/register").
		WithBody(map[string]string{
			"username": "",
			"email":    "not-an-email",
			"password": "short",
		}).Build())

	helpers.AssertProblemDetails(t, resp, http.StatusBadRequest, model.ErrCodeValidation)
	helpers.AssertValidationError(t, resp, "username")
	helpers.AssertValidationError(t, resp, "email")
	helpers.AssertValidationError(t, resp, "password")
}

func TestAuth_RegisterDuplicateUsername(t *testing.T) {
	// AC-AUTH-003: Duplicate Username
	api := newTestAPI(t)
	api.registerUser(t, "bob")

	resp := api.do(helpers.NewRequest(t, http.MethodPost, "/api/auth/register").
		WithBody(map[string]string{
			"username": "bob",
			"email":    "bob2@test.local",
			"password": "supersecret1",
		}).Build())

	helpers.AssertProblemDetails(t, resp, http.StatusConflict, model.ErrCodeConflict)
}

func TestAuth_LoginRoundTrip(t *testing.T) {
	// AC-AUTH-004: Login Round Trip
	api := newTestAPI(t)
	api.registerUser(t, "carol")

	resp := api.do(helpers.NewRequest(t, http.MethodPost, "/api/auth/login").
		WithBody(map[string]string{
			"username": "carol",
			"password": "testpass123",
		}).Build())

	helpers.AssertStatus(t, resp, http.StatusOK)
	helpers.AssertJSONContains(t, resp, map[string]interface{}{
		"message": "Logged in successfully",
	})

	token := helpers.SessionToken(t, resp)
	me := api.do(helpers.NewRequest(t, http.MethodGet, "/api/auth/user").
		WithSession(token).Build())
	helpers.AssertStatus(t, me, http.StatusOK)
	helpers.AssertJSONContains(t, me, map[string]interface{}{
		"username": "carol",
	})
}

func TestAuth_LoginBadCredentials(t *testing.T) {
	// AC-AUTH-005: Bad Credentials
	api := newTestAPI(t)
	api.registerUser(t, "dave")

	resp := api.do(helpers.NewRequest(t, http.MethodPost, "/api/auth/login").
		WithBody(map[string]string{
			"username": "dave",
			"password": "wrongpassword",
		}).Build())

	helpers.AssertProblemDetails(t, resp, http.StatusUnauthorized, model.ErrCodeLoginFailed)
}

func TestAuth_LogoutInvalidatesSession(t *testing.T) {
	// AC-AUTH-006: Logout Invalidates the Session
	api := newTestAPI(t)
	_, token := api.registerUser(t, "erin")

	resp := api.do(helpers.NewRequest(t, http.MethodPost, "/api/auth/logout").
		WithSession(token).Build())
	helpers.AssertStatus(t, resp, http.StatusOK)

	cleared := false
	for _, c := range resp.Result().Cookies() {
		if c.Name == helpers.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected logout to clear the session cookie")
	}

	me := api.do(helpers.NewRequest(t, http.MethodGet, "/api/auth/user").
		WithSession(token).Build())
	helpers.AssertProblemDetails(t, me, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestAuth_ProtectedRouteWithoutSession(t *testing.T) {
	// AC-AUTH-007: Protected Route Requires a Session
	api := newTestAPI(t)

	resp := api.do(helpers.NewRequest(t, http.MethodGet, "/api/auth/user").Build())
	helpers.AssertProblemDetails(t, resp, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

// containsHash reports whether a response body carries a bcrypt hash field
func containsHash(body string) bool {
	return strings.Contains(body, `"hash"`) ||
		strings.Contains(body, "$2a$") ||
		strings.Contains(body, "$2b$")
}
