package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckAdminBearerAcceptsMatchingToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/notify/lobbies", nil)
	r.Header.Set("Authorization", "Bearer secret-token")

	if !CheckAdminBearer(r, "secret-token") {
		t.Fatal("expected matching bearer token to be accepted")
	}
}

func TestCheckAdminBearerRejectsWrongToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/notify/lobbies", nil)
	r.Header.Set("Authorization", "Bearer wrong")

	if CheckAdminBearer(r, "secret-token") {
		t.Fatal("expected mismatched token to be rejected")
	}
}

func TestCheckAdminBearerRejectsMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/notify/lobbies", nil)

	if CheckAdminBearer(r, "secret-token") {
		t.Fatal("expected missing header to be rejected")
	}
}

func TestCheckAdminBearerRejectsEmptyExpected(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/notify/lobbies", nil)
	r.Header.Set("Authorization", "Bearer anything")

	if CheckAdminBearer(r, "") {
		t.Fatal("expected an empty configured secret to never match")
	}
}

func TestRequireAdminBearerMiddleware(t *testing.T) {
	called := false
	handler := RequireAdminBearer("secret-token", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	r := httptest.NewRequest(http.MethodPost, "/notify/lobbies", nil)
	w := httptest.NewRecorder()
	handler(w, r)

	if called {
		t.Fatal("expected handler not to run without a valid token")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
