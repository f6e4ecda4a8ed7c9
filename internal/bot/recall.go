package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bostossauro/internal/database"
	"bostossauro/internal/gemini"
	"bostossauro/internal/usage"
)

// recallRowLimit caps how many rows a recall query may return. Queries
// without an explicit LIMIT get this one appended.
const recallRowLimit = 200

const recallSQLTemplate = `Você é um gerador de SQL para SQLite. Gere exatamente UM comando SELECT, sem explicações, sem comentários e sem formatação markdown.

Esquema da tabela:
messages(conversation_id TEXT, timestamp INTEGER, sender_id TEXT, sender_name TEXT, content TEXT)

timestamp é epoch em segundos. Agora é %d (%s).

Regras:
- Sempre filtre por conversation_id = '%s'.
- Interprete janelas de tempo do pedido ("ontem", "semana passada", "hoje de manhã") em filtros de timestamp.
- Se o pedido não indicar período, retorne as %d mensagens mais recentes.
- Nunca retorne mais de %d linhas.
- Ordene por timestamp.

Pedido do usuário: %q`

// Recaller turns a natural-language request into a SQL query via the AI
// backend, runs it against the read-only message log and formats the rows
// for the answer prompt. The generated SQL never touches the main pool.
type Recaller struct {
	log      *slog.Logger
	ai       gemini.Client
	selector *Selector
	tracker  usage.Tracker
	store    database.Store
	now      func() time.Time
}

// NewRecaller wires the recall sub-flow.
func NewRecaller(ai gemini.Client, selector *Selector, tracker usage.Tracker, store database.Store, log *slog.Logger) *Recaller {
	return &Recaller{
		log:      log.With("component", "recall"),
		ai:       ai,
		selector: selector,
		tracker:  tracker,
		store:    store,
		now:      time.Now,
	}
}

// FetchHistory generates the SELECT for the request, executes it and returns
// the matched messages rendered as prompt text. Model exhaustion surfaces as
// ErrRecallUnavailable, a non-SELECT answer as ErrInvalidSelect, execution
// failures wrapped in ErrSQLExec, and an empty result as ErrNoSQLResult.
func (r *Recaller) FetchHistory(ctx context.Context, conversationID, request string) (string, error) {
	model, err := r.selector.Select(CommandRecall, "")
	if err != nil {
		return "", err
	}

	now := r.now()
	prompt := fmt.Sprintf(recallSQLTemplate,
		now.Unix(), now.Format("02/01/2006 15:04"), conversationID,
		recallRowLimit, recallRowLimit, request)

	raw, err := r.ai.Generate(ctx, model, prompt)
	if err != nil {
		return "", fmt.Errorf("SQL generation with %s failed: %w", model, err)
	}
	_ = r.tracker.Increment(model)

	query, err := SanitizeRecallSQL(raw)
	if err != nil {
		r.log.WarnContext(ctx, "AI produced non-SELECT output", "output_len", len(raw))
		return "", err
	}
	r.log.DebugContext(ctx, "Recall query generated", "model", model, "query", query)

	rows, err := r.store.QueryRecallRows(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSQLExec, err)
	}
	if len(rows) == 0 {
		return "", ErrNoSQLResult
	}

	return formatRecallRows(rows), nil
}

// SanitizeRecallSQL strips markdown fences from the AI output and verifies
// the statement is a SELECT. A missing LIMIT clause gets the row cap
// appended; execution still happens on the read-only pool regardless.
func SanitizeRecallSQL(raw string) (string, error) {
	query := strings.TrimSpace(raw)
	query = strings.TrimPrefix(query, "```sql")
	query = strings.TrimPrefix(query, "```")
	query = strings.TrimSuffix(query, "```")
	query = strings.TrimSpace(query)
	query = strings.TrimSuffix(query, ";")

	if !strings.HasPrefix(strings.ToLower(query), "select") {
		return "", ErrInvalidSelect
	}
	if !strings.Contains(strings.ToLower(query), "limit") {
		query = fmt.Sprintf("%s LIMIT %d", query, recallRowLimit)
	}
	return query, nil
}

// formatRecallRows renders query rows as "[data] Nome: conteúdo" lines.
// Unknown column sets degrade to a flat key=value rendering so the answer
// prompt still gets something useful.
func formatRecallRows(rows []map[string]any) string {
	var sb strings.Builder
	for _, row := range rows {
		name, hasName := stringColumn(row, "sender_name")
		content, hasContent := stringColumn(row, "content")
		if hasName || hasContent {
			if ts, ok := intColumn(row, "timestamp"); ok {
				sb.WriteString(fmt.Sprintf("[%s] ", time.Unix(ts, 0).Format("02/01/2006 15:04")))
			}
			if !hasName {
				name = "Desconhecido"
			}
			sb.WriteString(fmt.Sprintf("%s: %s\n", name, content))
			continue
		}
		for key, val := range row {
			sb.WriteString(fmt.Sprintf("%s=%v ", key, val))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func stringColumn(row map[string]any, key string) (string, bool) {
	val, ok := row[key]
	if !ok || val == nil {
		return "", false
	}
	switch v := val.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return fmt.Sprintf("%v", val), true
}

func intColumn(row map[string]any, key string) (int64, bool) {
	val, ok := row[key]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
