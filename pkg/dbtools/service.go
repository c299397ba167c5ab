package dbtools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/connector"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dsl"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/logger"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/nl2sql"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/risk"
)

var (
	// ErrInvalidRequest marks caller mistakes such as a missing question.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoTranslator is returned by Generate when no SQL generator is configured.
	ErrNoTranslator = errors.New("sql generation is not configured")
)

// Engines is the engine cache as seen by the service.
type Engines interface {
	connector.Acquirer
	Invalidate(spec dialect.ConnectionSpec) error
}

type GenerateRequest struct {
	Connection   dialect.ConnectionSpec
	Tables       []string
	WithComments bool
	Question     string
	CustomPrompt string
	Limit        int
	Format       string
}

type GenerateResult struct {
	SQL       string            `json:"sql"`
	Format    Format            `json:"format"`
	SchemaDSL string            `json:"schema_dsl"`
	Model     string            `json:"model,omitempty"`
	Risk      risk.RiskDecision `json:"risk"`
	Tables    int               `json:"tables"`
	Dialect   dialect.Tag       `json:"dialect"`
}

type ExecuteRequest struct {
	Connection dialect.ConnectionSpec
	SQL        string
	Limit      int
	Format     string
}

type ExecuteResult struct {
	*QueryResult
	Format   Format `json:"format"`
	Rendered string `json:"rendered"`
}

// Service wires schema assembly, SQL generation, validation and execution.
type Service struct {
	engines    Engines
	schemas    *connector.Assembler
	executor   *Executor
	translator nl2sql.Translator
	timeout    time.Duration
}

type ServiceOption func(*Service)

// WithTimeout bounds every Generate and Execute call. Zero disables it.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// NewService creates a Service. translator may be nil, in which case
// Generate fails with ErrNoTranslator.
func NewService(engines Engines, translator nl2sql.Translator, opts ...ServiceOption) *Service {
	s := &Service{
		engines:    engines,
		schemas:    connector.NewAssembler(engines),
		executor:   NewExecutor(engines),
		translator: translator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Generate builds the schema of req.Connection, encodes it and asks the
// translator for SQL. The SQL is classified but never executed.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	desc, err := dialect.Lookup(req.Connection.Dialect)
	if err != nil {
		return nil, err
	}
	if err := desc.CheckParams(req.Connection.Params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if s.translator == nil {
		return nil, ErrNoTranslator
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	model, err := s.schemas.BuildSchema(ctx, req.Connection, req.Tables, req.WithComments)
	if err != nil {
		s.invalidateOnConnectionError(ctx, req.Connection, err)
		return nil, err
	}
	schemaDSL := dsl.Encode(model)

	res, err := s.translator.Translate(ctx, nl2sql.Request{
		SchemaDSL:    schemaDSL,
		Question:     req.Question,
		CustomPrompt: req.CustomPrompt,
		Dialect:      desc.Tag,
		LimitHint:    desc.LimitClause(ClampLimit(req.Limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate sql: %w", dberr.WithContext(ctx, err))
	}

	decision := risk.ClassifyFor(desc.Tag, res.SQL)
	if !decision.IsSafe {
		logger.Warn("Generated %s SQL would be rejected: %s", desc.Tag, decision.MatchedPattern)
	}

	return &GenerateResult{
		SQL:       res.SQL,
		Format:    format,
		SchemaDSL: schemaDSL,
		Model:     res.Model,
		Risk:      decision,
		Tables:    len(model.Tables),
		Dialect:   desc.Tag,
	}, nil
}

// Execute validates req.SQL and runs it. A rejected statement never touches
// the engine cache.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, fmt.Errorf("%w: sql is required", ErrInvalidRequest)
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	desc, err := dialect.Lookup(req.Connection.Dialect)
	if err != nil {
		return nil, err
	}
	if err := desc.CheckParams(req.Connection.Params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := risk.Validate(req.Connection.Dialect, req.SQL); err != nil {
		logger.Warn("Rejected %s statement: %v", req.Connection.Dialect, err)
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.executor.Run(ctx, req.Connection, req.SQL, req.Limit)
	if err != nil {
		s.invalidateOnConnectionError(ctx, req.Connection, err)
		return nil, err
	}

	rendered, err := Render(result, format)
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{QueryResult: result, Format: format, Rendered: rendered}, nil
}

// invalidateOnConnectionError drops the engine after a failed acquisition so
// the next request dials with the credentials it carries.
func (s *Service) invalidateOnConnectionError(ctx context.Context, spec dialect.ConnectionSpec, err error) {
	var connErr *dberr.ConnectionError
	if !errors.As(err, &connErr) || ctx.Err() != nil {
		return
	}
	if err := s.engines.Invalidate(spec); err != nil {
		logger.Warn("Failed to invalidate engine: %v", err)
	}
}
