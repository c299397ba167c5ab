package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dsl"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAITranslator calls any OpenAI-compatible chat completions endpoint.
type OpenAITranslator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAITranslator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(buildOpenAIPayload(t.model, t.temperature, req))
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("empty chat completion choices")
	}

	sql := stripMarkdownSQL(parsed.Choices[0].Message.Content)
	if strings.TrimSpace(sql) == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{
		SQL:      sql,
		Provider: "openai-compatible",
		Model:    t.model,
	}, nil
}

func buildOpenAIPayload(model string, temperature float64, req Request) map[string]any {
	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(req.Dialect)},
			{"role": "user", "content": userPrompt(req)},
		},
		"temperature": temperature,
	}
}

var engineNames = map[dialect.Tag]string{
	dialect.MySQL:      "MySQL",
	dialect.PostgreSQL: "PostgreSQL",
	dialect.Oracle:     "Oracle",
	dialect.SQLServer:  "SQL Server (T-SQL)",
	dialect.GaussDB:    "GaussDB (PostgreSQL-compatible)",
	dialect.Kingbase:   "KingbaseES (PostgreSQL-compatible)",
	dialect.DM:         "DM (Oracle-compatible)",
}

func systemPrompt(tag dialect.Tag) string {
	name, ok := engineNames[tag]
	if !ok {
		name = "SQL"
	}
	return "You convert natural language requests into a single read-only " + name + " SELECT query. " +
		"Never write INSERT, UPDATE, DELETE, DDL or permission statements. " +
		"Return ONLY SQL. No markdown, no explanation."
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema (DSL v%s, one table per line as T:table(column:type,...); ", dsl.Version)
	b.WriteString("types: i=int s=string dt=datetime f=float b=bool j=json; text after # is a comment):\n")
	b.WriteString(req.SchemaDSL)
	b.WriteString("\n\nUser request:\n")
	b.WriteString(strings.TrimSpace(req.Question))
	b.WriteString("\n\nRules:\n- Use only listed tables and columns.\n- Prefer explicit columns.\n")
	if req.LimitHint != "" {
		fmt.Fprintf(&b, "- Limit the rows with %s unless the user asks otherwise.\n", req.LimitHint)
	}
	b.WriteString("- Output a single SQL query only.")
	if custom := strings.TrimSpace(req.CustomPrompt); custom != "" {
		b.WriteString("\n\nAdditional instructions:\n")
		b.WriteString(custom)
	}
	return b.String()
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
