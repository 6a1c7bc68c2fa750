package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyHelpers_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected no key")
	}
	if IsReplay(c) {
		t.Fatalf("expected no replay")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemReplay, true)
	if IsReplay(c) {
		t.Fatalf("non-Replay value must read as absent")
	}
	c.Set(ctxKeyIdemReplay, Replay{RecordID: "r1", Status: 201})
	if r, ok := ReplayOf(c); !ok || r.RecordID != "r1" || r.Status != 201 {
		t.Fatalf("ReplayOf = %+v %v", r, ok)
	}
}

func TestIdempotencyValidator_SkipsWithoutHeaderOrOnNonPost(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	lookup := func(context.Context, string, string, string, time.Time) (string, int, bool, error) {
		calls++
		return "", 0, false, nil
	}
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.Any("/rest/v1/:table", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key must not be stashed")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rest/v1/clients", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("no header: %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rest/v1/clients", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("GET with key: %d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("lookup called %d times", calls)
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		opts IdempotencyOptions
		key  string
	}{
		{IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
		{IdempotencyOptions{}, "has space"},
	}
	for _, tc := range cases {
		r := gin.New()
		r.Use(RequestID(), IdempotencyValidator(tc.opts, nil))
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, tc.key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", tc.key, w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body["code"] != "bad_idempotency_key" || body["request_id"] == "" {
			t.Fatalf("unexpected body: %v", body)
		}
	}
}

func TestIdempotencyValidator_LookupScopesByTableAndUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("miss", func(t *testing.T) {
		r := gin.New()
		r.Use(Identity())
		r.Use(IdempotencyValidator(IdempotencyOptions{}, func(_ context.Context, userID, scope, key string, now time.Time) (string, int, bool, error) {
			if userID != AnonymousUser || scope != "clients" || key != "k-1" || now.IsZero() {
				t.Fatalf("lookup args: %q %q %q %v", userID, scope, key, now)
			}
			return "", 0, false, nil
		}))
		r.POST("/rest/v1/:table", func(c *gin.Context) {
			if k, _ := GetIdempotencyKey(c); k != "k-1" || IsReplay(c) {
				t.Fatalf("key=%q replay=%v", k, IsReplay(c))
			}
			c.Status(http.StatusCreated)
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/rest/v1/clients", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("miss: %d", w.Code)
		}
	})

	t.Run("hit", func(t *testing.T) {
		r := gin.New()
		r.Use(Identity())
		r.Use(IdempotencyValidator(IdempotencyOptions{}, func(_ context.Context, userID, scope, key string, _ time.Time) (string, int, bool, error) {
			if userID != "ana" || scope != "perdcomps" {
				t.Fatalf("lookup args: %q %q", userID, scope)
			}
			return "row-9", http.StatusCreated, true, nil
		}))
		r.POST("/rest/v1/:table", func(c *gin.Context) {
			rep, ok := ReplayOf(c)
			if !ok || rep.RecordID != "row-9" || rep.Status != http.StatusCreated {
				t.Fatalf("replay = %+v %v", rep, ok)
			}
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/rest/v1/perdcomps", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-9")
		req.Header.Set(HeaderUserID, "ana")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("hit: %d", w.Code)
		}
	})

	t.Run("lookup error proceeds", func(t *testing.T) {
		r := gin.New()
		r.Use(IdempotencyValidator(IdempotencyOptions{}, func(context.Context, string, string, string, time.Time) (string, int, bool, error) {
			return "", 0, false, errors.New("db down")
		}))
		r.POST("/rest/v1/:table", func(c *gin.Context) {
			if IsReplay(c) {
				t.Fatalf("lookup error must not mark replay")
			}
			c.Status(http.StatusCreated)
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/rest/v1/clients", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-2")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("error path: %d", w.Code)
		}
	})
}
