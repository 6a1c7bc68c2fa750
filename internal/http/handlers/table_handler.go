package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/miele-backoffice/internal/http/middleware"
	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/utils"
)

// TableService is the business layer behind the table routes.
type TableService interface {
	Tables() []string
	Has(table string) bool
	List(ctx context.Context, table string, q remote.Query) (any, int64, error)
	Get(ctx context.Context, table, id string) (any, error)
	Search(ctx context.Context, table, query string) (any, error)
	Stats(ctx context.Context, table string) (int64, *time.Time, error)
	Create(ctx context.Context, userID, table string, p remote.Patch) (string, any, error)
	Update(ctx context.Context, userID, table, id string, p remote.Patch) (any, error)
	Delete(ctx context.Context, userID, table, id string) error
}

// InsertRecorder remembers the row created for an Idempotency-Key.
type InsertRecorder interface {
	RememberInsert(ctx context.Context, userID, table, key, recordID string, status int) error
}

// Handlers serves every table through one set of routes.
type Handlers struct {
	svc  TableService
	idem InsertRecorder
}

// New binds handlers to svc. idem may be nil, which disables storing
// idempotency keys.
func New(svc TableService, idem InsertRecorder) *Handlers {
	return &Handlers{svc: svc, idem: idem}
}

// Register mounts the table routes on g.
func (h *Handlers) Register(g gin.IRoutes) {
	g.GET("", h.Tables)
	g.GET("/:table", h.List)
	g.GET("/:table/search", h.Search)
	g.GET("/:table/:id", h.Get)
	g.POST("/:table", h.Create)
	g.PATCH("/:table/:id", h.Update)
	g.DELETE("/:table/:id", h.Delete)
}

const (
	defaultPageSize = 20
	maxPageSize     = 500
	filterOp        = "eq."
)

// listQuery reads page, page_size and "col=eq.value" filters. Any other
// operator is rejected.
func listQuery(c *gin.Context) (remote.Query, error) {
	page, size := utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), defaultPageSize),
		defaultPageSize, maxPageSize,
	)
	q := remote.Query{Page: page, PageSize: size}
	for col, vals := range c.Request.URL.Query() {
		if col == "page" || col == "page_size" || len(vals) == 0 {
			continue
		}
		v, found := strings.CutPrefix(vals[0], filterOp)
		if !found {
			return q, fmt.Errorf("filter %q: only %q is supported", col, filterOp)
		}
		if q.Filters == nil {
			q.Filters = remote.Filters{}
		}
		q.Filters[col] = v
	}
	return q, nil
}

// table aborts with 404 unknown_table when the :table param is not served.
func (h *Handlers) table(c *gin.Context) (string, bool) {
	t := c.Param("table")
	if !h.svc.Has(t) {
		fail(c, http.StatusNotFound, ErrCodeUnknownTable, fmt.Sprintf("unknown table %q", t))
		return "", false
	}
	return t, true
}

func bindPatch(c *gin.Context) (remote.Patch, bool) {
	var p remote.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return nil, false
	}
	return p, true
}

// Tables godoc
// @ID          listTables
// @Summary     List served tables
// @Tags        Tables
// @Produce     json
// @Success     200  {object}  handlers.TablesResponse
// @Router      / [get]
func (h *Handlers) Tables(c *gin.Context) {
	ok(c, http.StatusOK, TablesResponse{Tables: h.svc.Tables()})
}

// List godoc
// @ID          listRows
// @Summary     List rows (paginated)
// @Description Newest first. Filters are column equality predicates written as col=eq.value.
// @Description Sends X-Total-Count and a weak ETag; If-None-Match may yield 304.
// @Tags        Tables
// @Produce     json
//
// @Param       table      path   string  true  "Table name"  Enums(clients,perdcomps,requests,activities,settings)
// @Param       page       query  int     false "Page number"  minimum(1) default(1)
// @Param       page_size  query  int     false "Rows per page"  minimum(1) maximum(500) default(20)
//
// @Success     200  {object}  handlers.ListResponse
// @Success     304  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad filter"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown table"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /{table} [get]
func (h *Handlers) List(c *gin.Context) {
	ctx := c.Request.Context()
	table, found := h.table(c)
	if !found {
		return
	}
	q, err := listQuery(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	// ETag pre-check (best effort).
	if count, latest, err := h.svc.Stats(ctx, table); err == nil {
		var ts int64
		if latest != nil {
			ts = latest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"%s:%d:%d"`, table, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	rows, total, err := h.svc.List(ctx, table, q)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	totalPages := remote.TotalPages(total, q.PageSize)
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	ok(c, http.StatusOK, ListResponse{
		Data: rows,
		Pagination: Pagination{
			Page:       q.Page,
			PageSize:   q.PageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    q.Page < totalPages,
		},
	})
}

// Search godoc
// @ID          searchRows
// @Summary     Search rows
// @Description Case-insensitive substring match over the table's text columns.
// @Tags        Tables
// @Produce     json
// @Param       table  path   string  true  "Table name"
// @Param       q      query  string  false "Search text"
// @Success     200  {object}  handlers.SearchResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown table"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /{table}/search [get]
func (h *Handlers) Search(c *gin.Context) {
	table, found := h.table(c)
	if !found {
		return
	}
	rows, err := h.svc.Search(c.Request.Context(), table, c.Query("q"))
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, SearchResponse{Data: rows})
}

// Get godoc
// @ID          getRow
// @Summary     Get one row
// @Tags        Tables
// @Produce     json
// @Param       table  path  string  true  "Table name"
// @Param       id     path  string  true  "Row id"  format(uuid)
// @Success     200  {object}  map[string]any
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown table or row"
// @Router      /{table}/{id} [get]
func (h *Handlers) Get(c *gin.Context) {
	table, found := h.table(c)
	if !found {
		return
	}
	row, err := h.svc.Get(c.Request.Context(), table, c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, row)
}

// Create godoc
// @ID          createRow
// @Summary     Insert a row
// @Description The server assigns id and timestamps and records a CREATE activity.
// @Description A retried POST with the same Idempotency-Key returns the originally created row.
// @Tags        Tables
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false "Acting user"  example(ana)
// @Param       Idempotency-Key  header  string  false "Key for safe retries (UUID recommended)"
// @Param       table            path    string  true  "Table name"
// @Param       body             body    map[string]any  true  "Columns to set"
// @Success     201  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid body or validation failure"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown table"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /{table} [post]
func (h *Handlers) Create(c *gin.Context) {
	ctx := c.Request.Context()
	table, found := h.table(c)
	if !found {
		return
	}

	// A replay whose row has since been deleted falls through to a fresh insert.
	if rep, isReplay := middleware.ReplayOf(c); isReplay {
		if row, err := h.svc.Get(ctx, table, rep.RecordID); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, rep.Status, row)
			return
		}
	}

	p, bound := bindPatch(c)
	if !bound {
		return
	}
	user := middleware.UserID(c)
	id, row, err := h.svc.Create(ctx, user, table, p)
	if err != nil {
		failErr(c, err, ErrCodeCreateFailed)
		return
	}

	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey && h.idem != nil {
		if err := h.idem.RememberInsert(ctx, user, table, key, id, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("record_id", id).Msg("idempotency record not saved")
		}
	}
	ok(c, http.StatusCreated, row)
}

// Update godoc
// @ID          updateRow
// @Summary     Patch a row
// @Description Only the columns present in the body change. Records an UPDATE activity.
// @Tags        Tables
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Acting user"
// @Param       table      path    string  true  "Table name"
// @Param       id         path    string  true  "Row id"
// @Param       body       body    map[string]any  true  "Columns to change"
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid body or validation failure"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown table or row"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate"
// @Router      /{table}/{id} [patch]
func (h *Handlers) Update(c *gin.Context) {
	table, found := h.table(c)
	if !found {
		return
	}
	p, bound := bindPatch(c)
	if !bound {
		return
	}
	row, err := h.svc.Update(c.Request.Context(), middleware.UserID(c), table, c.Param("id"), p)
	if err != nil {
		failErr(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, row)
}

// Delete godoc
// @ID          deleteRow
// @Summary     Delete a row
// @Description Hard delete unless the server runs with SOFT_DELETE. Records a DELETE activity.
// @Tags        Tables
// @Param       X-User-ID  header  string  false "Acting user"
// @Param       table      path    string  true  "Table name"
// @Param       id         path    string  true  "Row id"
// @Success     204  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown table or row"
// @Router      /{table}/{id} [delete]
func (h *Handlers) Delete(c *gin.Context) {
	table, found := h.table(c)
	if !found {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), table, c.Param("id")); err != nil {
		failErr(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}
