// Package api serves the entry operations over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FreePeak/nl2sql-mcp-server/internal/delivery/mcp"
	"github.com/FreePeak/nl2sql-mcp-server/internal/logger"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/db"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dbtools"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
)

// EngineStats reports the engine cache for health checks. *db.Manager
// implements it.
type EngineStats interface {
	Stats() []db.Stats
}

// Handler answers the SQL endpoints.
type Handler struct {
	useCase mcp.UseCaseProvider
	engines EngineStats
}

func NewHandler(useCase mcp.UseCaseProvider, engines EngineStats) *Handler {
	return &Handler{useCase: useCase, engines: engines}
}

type connectionRequest struct {
	DBType   string            `json:"db_type" binding:"required,dialect"`
	Host     string            `json:"host" binding:"required"`
	Port     int               `json:"port" binding:"omitempty,min=1,max=65535"`
	Database string            `json:"database" binding:"required"`
	Username string            `json:"username" binding:"required"`
	Password string            `json:"password"`
	Schema   string            `json:"schema"`
	Params   map[string]string `json:"params"`
}

func (r connectionRequest) spec() (dialect.ConnectionSpec, error) {
	tag, err := dialect.Parse(r.DBType)
	if err != nil {
		return dialect.ConnectionSpec{}, err
	}
	desc, err := dialect.Lookup(tag)
	if err != nil {
		return dialect.ConnectionSpec{}, err
	}
	if err := desc.CheckParams(r.Params); err != nil {
		return dialect.ConnectionSpec{}, fmt.Errorf("%w: %w", dbtools.ErrInvalidRequest, err)
	}
	return dialect.ConnectionSpec{
		Dialect:  tag,
		Host:     r.Host,
		Port:     r.Port,
		Database: r.Database,
		Username: r.Username,
		Password: r.Password,
		Schema:   r.Schema,
		Params:   r.Params,
	}, nil
}

type generateRequest struct {
	connectionRequest
	Query        string   `json:"query" binding:"required"`
	Tables       []string `json:"tables"`
	WithComment  bool     `json:"with_comment"`
	CustomPrompt string   `json:"custom_prompt"`
	Limit        int      `json:"limit" binding:"omitempty,min=1,max=100000"`
	ResultFormat string   `json:"result_format" binding:"omitempty,result_format"`
}

type executeRequest struct {
	connectionRequest
	SQL          string `json:"sql" binding:"required"`
	Limit        int    `json:"limit" binding:"omitempty,min=1,max=100000"`
	ResultFormat string `json:"result_format" binding:"omitempty,result_format"`
}

// Generate handles POST /v1/sql/generate.
func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	spec, err := req.spec()
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.useCase.Generate(c.Request.Context(), dbtools.GenerateRequest{
		Connection:   spec,
		Tables:       req.Tables,
		WithComments: req.WithComment,
		Question:     req.Query,
		CustomPrompt: req.CustomPrompt,
		Limit:        req.Limit,
		Format:       req.ResultFormat,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Execute handles POST /v1/sql/execute. CSV and text results are sent as
// is; JSON results are wrapped with their metadata.
func (h *Handler) Execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	spec, err := req.spec()
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.useCase.Execute(c.Request.Context(), dbtools.ExecuteRequest{
		Connection: spec,
		SQL:        req.SQL,
		Limit:      req.Limit,
		Format:     req.ResultFormat,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	switch res.Format {
	case dbtools.FormatCSV:
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(res.Rendered))
	case dbtools.FormatText:
		c.String(http.StatusOK, res.Rendered)
	default:
		c.JSON(http.StatusOK, gin.H{
			"columns":   res.Columns,
			"rows":      res.Rows,
			"row_count": res.RowCount(),
			"truncated": res.Truncated,
			"format":    res.Format,
		})
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	engines := 0
	if h.engines != nil {
		engines = len(h.engines.Stats())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engines": engines})
}

var errorStatus = map[string]int{
	dberr.KindUnsupportedDialect: http.StatusBadRequest,
	dberr.KindRiskRejected:       http.StatusUnprocessableEntity,
	dberr.KindTimeout:            http.StatusGatewayTimeout,
	dberr.KindConnection:         http.StatusBadGateway,
	dberr.KindSchemaExtraction:   http.StatusBadGateway,
	dberr.KindExecution:          http.StatusBadRequest,
}

func writeError(c *gin.Context, err error) {
	kind := dberr.Kind(err)
	status, ok := errorStatus[kind]
	switch {
	case ok:
	case errors.Is(err, dbtools.ErrInvalidRequest):
		kind, status = "invalid_request", http.StatusBadRequest
	case errors.Is(err, dbtools.ErrNoTranslator):
		kind, status = "not_configured", http.StatusNotImplemented
	default:
		kind, status = "internal_error", http.StatusInternalServerError
		logger.Error("Request failed: %v", err)
	}

	detail := gin.H{"type": kind, "message": err.Error()}
	var rejected *dberr.RiskRejectedError
	if errors.As(err, &rejected) {
		detail["pattern"] = rejected.Pattern
	}
	c.JSON(status, gin.H{"error": detail})
}

func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
}
