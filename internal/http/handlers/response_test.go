package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/miele-backoffice/internal/http/middleware"
	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/services"
)

// errorEngine serves GET /err, answering with failErr(err) for the error
// registered under the ?case= query value.
func errorEngine(logs *bytes.Buffer, cases map[string]error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		l := zerolog.New(logs)
		c.Set("logger", &l)
		c.Next()
	})
	r.GET("/err", func(c *gin.Context) {
		failErr(c, cases[c.Query("case")], ErrCodeUpdateFailed)
	})
	return r
}

func TestFailErr_MapsServiceErrors(t *testing.T) {
	cases := map[string]error{
		"validation": fmt.Errorf("perdcomps: %w", &services.ValidationError{Field: "numero", Reason: "is required"}),
		"table":      services.ErrUnknownTable,
		"missing":    fmt.Errorf("update x: %w", services.ErrNotFound),
		"duplicate":  services.ErrDuplicate,
		"column":     fmt.Errorf("%w: cor", remote.ErrUnknownColumn),
		"other":      errors.New("disk full"),
	}
	want := map[string]struct {
		status int
		code   string
	}{
		"validation": {http.StatusBadRequest, ErrCodeValidation},
		"table":      {http.StatusNotFound, ErrCodeUnknownTable},
		"missing":    {http.StatusNotFound, ErrCodeNotFound},
		"duplicate":  {http.StatusConflict, ErrCodeConflict},
		"column":     {http.StatusBadRequest, ErrCodeBadRequest},
		"other":      {http.StatusInternalServerError, ErrCodeUpdateFailed},
	}

	var logs bytes.Buffer
	r := errorEngine(&logs, cases)
	for name, w := range want {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/err?case="+name, nil))

		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: json: %v", name, err)
		}
		if rec.Code != w.status || body.Code != w.code {
			t.Fatalf("%s: got %d %q; want %d %q", name, rec.Code, body.Code, w.status, w.code)
		}
		if body.RequestID == "" || body.RequestID != rec.Header().Get("X-Request-ID") {
			t.Fatalf("%s: request id %q vs header %q", name, body.RequestID, rec.Header().Get("X-Request-ID"))
		}
	}
	if n := strings.Count(logs.String(), `"level":"error"`); n != 1 {
		t.Fatalf("only the 500 is logged, got %d error lines:\n%s", n, logs.String())
	}
	if !strings.Contains(logs.String(), "disk full") {
		t.Fatalf("500 log lacks the cause: %s", logs.String())
	}
}

func TestValidationMessageNamesField(t *testing.T) {
	var logs bytes.Buffer
	r := errorEngine(&logs, map[string]error{"v": &services.ValidationError{Field: "cnpj", Reason: "must have 14 digits"}})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/err?case=v", nil))
	if !strings.Contains(rec.Body.String(), "cnpj: must have 14 digits") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestFailAndSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found") })
	r.POST("/rows", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"id": "r-1"}) })
	r.DELETE("/rows/r-1", func(c *gin.Context) { noContent(c) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil || rec.Code != http.StatusNotFound || er.Code != ErrCodeNotFound {
		t.Fatalf("Fail: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rows", nil))
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"id":"r-1"`) {
		t.Fatalf("ok: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rows/r-1", nil))
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("noContent: %d %q", rec.Code, rec.Body.String())
	}
}
