package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/miele-backoffice/internal/config"
	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/http/middleware"
	"github.com/tbourn/miele-backoffice/internal/repo"
	"github.com/tbourn/miele-backoffice/internal/restclient"
	"github.com/tbourn/miele-backoffice/internal/services"
	"github.com/tbourn/miele-backoffice/internal/store"
	"github.com/tbourn/miele-backoffice/internal/stores"
)

func testConfig() config.Config {
	return config.Config{
		APIBasePath:  "/rest/v1",
		MaxBodyBytes: 1 << 20,
		RateRPS:      1000,
		RateBurst:    1000,
		OTEL:         config.OTELConfig{ServiceName: "miele-test"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *services.TableService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := repo.Open(repo.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc, err := services.NewTableService(db)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	r := gin.New()
	RegisterRoutes(r, svc, cfg)
	return r, svc
}

func serve(r http.Handler, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_OperationalEndpoints(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("GET /health = %d %v", w.Code, w.Header())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all CORS expected '*', got %q", got)
	}

	if w := serve(r, http.MethodGet, "/metrics", nil, nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "miele_http_requests_total") {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/nope/at/all", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("NoRoute = %d", w.Code)
	}
	if w := serve(r, http.MethodPut, "/rest/v1/clients/x", nil, nil); w.Code != http.StatusMethodNotAllowed || !strings.Contains(w.Body.String(), "method_not_allowed") {
		t.Fatalf("NoMethod = %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/swagger/index.html", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}

	w = serve(r, http.MethodGet, "/rest/v1", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"perdcomps"`) {
		t.Fatalf("GET /rest/v1 = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_SwaggerAndGzip(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newRouter(t, cfg)

	if w := serve(r, http.MethodGet, "/swagger/doc.json", nil, nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "listTables") {
		t.Fatalf("swagger doc = %d", w.Code)
	}

	w := serve(r, http.MethodGet, "/rest/v1/clients", nil, map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("gzip list = %d %v", w.Code, w.Header())
	}
}

func TestRegisterRoutes_CORSAllowlist(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://miele.example"}
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://miele.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://miele.example" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "X-Total-Count") {
		t.Fatalf("expose headers = %q", w.Header().Get("Access-Control-Expose-Headers"))
	}

	w = serve(r, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin must not be allowed, got %q", got)
	}
}

func TestRegisterRoutes_RateLimitSparesReplays(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	r, _ := newRouter(t, cfg)

	hdr := map[string]string{
		"Content-Type":                  "application/json",
		middleware.HeaderUserID:         "ana",
		middleware.HeaderIdempotencyKey: "cli-1",
	}
	body := `{"razao_social":"ACME","cnpj":"12345678000195"}`
	if w := serve(r, http.MethodPost, "/rest/v1/clients", strings.NewReader(body), hdr); w.Code != http.StatusCreated {
		t.Fatalf("first POST = %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/rest/v1/clients", nil, map[string]string{middleware.HeaderUserID: "ana"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("bucket should be empty, got %d", w.Code)
	}
	w := serve(r, http.MethodPost, "/rest/v1/clients", strings.NewReader(body), hdr)
	if w.Code != http.StatusCreated || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay = %d %s", w.Code, w.Body.String())
	}
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	if w := serve(r, http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"), nil); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/echo", bytes.NewBufferString("short"), nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGroupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		if w := serve(r, http.MethodGet, path, nil, nil); w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s = %d %q", path, w.Code, w.Body.String())
		}
	}
}

// The stores talk to a live server through the REST accessors.
func TestStoresOverREST(t *testing.T) {
	r, svc := newRouter(t, testConfig())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := restclient.New(srv.URL+"/rest/v1", restclient.WithUserID("ana"), restclient.WithRetries(2), restclient.WithRetryWait(time.Millisecond, 5*time.Millisecond))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	reg := stores.NewRegistry(stores.RESTAccessors(c), store.WithPageSize(10), store.WithTimeout(5*time.Second))
	ctx := context.Background()

	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	str := func(s string) *string { return &s }
	cl, err := reg.Clients.Create(ctx, domain.ClientPatch{RazaoSocial: str("ACME Ltda"), CNPJ: str("12.345.678/0001-95")})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if cl.CNPJFormatado != "12.345.678/0001-95" || !cl.Ativo {
		t.Fatalf("client = %+v", cl)
	}

	pc, err := reg.PerdComps.Create(ctx, domain.PerdCompPatch{
		ClientID:      &cl.ID,
		Numero:        str("12345.67890.010124.1.3.04-1234"),
		TributoPedido: str("IRPJ"),
		Competencia:   str("2024-01"),
		ValorPedido:   str("1500.50"),
	})
	if err != nil {
		t.Fatalf("create filing: %v", err)
	}
	if pc.Status != domain.StatusRascunho || pc.ValorPedido != "1500.5" {
		t.Fatalf("filing = %+v", pc)
	}
	if st := reg.PerdComps.State(); len(st.Items) != 1 || st.TotalCount != 1 || st.Items[0].ID != pc.ID {
		t.Fatalf("state after create = %+v", st)
	}

	status := domain.StatusTransmitido
	if _, err := reg.PerdComps.Update(ctx, pc.ID, domain.PerdCompPatch{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := reg.PerdComps.FetchByID(ctx, pc.ID)
	if err != nil || got.Status != domain.StatusTransmitido {
		t.Fatalf("FetchByID = %+v, %v", got, err)
	}

	reg.PerdComps.Search(ctx, "12345.67890")
	if st := reg.PerdComps.State(); len(st.Items) != 1 || st.Error != "" {
		t.Fatalf("search state = %+v", st)
	}

	if err := reg.PerdComps.Delete(ctx, pc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := reg.PerdComps.FetchByID(ctx, pc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FetchByID after delete: %v", err)
	}

	// server-side validation surfaces in the store's Error
	if _, err := reg.PerdComps.Create(ctx, domain.PerdCompPatch{Numero: str("sem cliente")}); err == nil {
		t.Fatalf("expected validation error")
	}
	if reg.PerdComps.State().Error == "" {
		t.Fatalf("store Error must be set after a failed create")
	}

	// every write above went through the audit log as ana
	reg.Activities.FetchPage(ctx, 1)
	st := reg.Activities.State()
	if st.Error != "" || st.TotalCount < 4 {
		t.Fatalf("activities = %+v", st)
	}
	for _, a := range st.Items {
		if a.Usuario != "ana" {
			t.Fatalf("activity by %q; want ana", a.Usuario)
		}
	}

	n, _, err := svc.Stats(ctx, domain.TablePerdComps)
	if err != nil || n != 0 {
		t.Fatalf("perdcomps left = %d %v", n, err)
	}
}
