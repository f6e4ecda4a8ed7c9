package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"bostossauro/internal/database"
)

const (
	// MemorySeparator splits an AI reply into the user-facing half and the
	// private memory-update payload.
	MemorySeparator = "===MEMORIA==="

	// SummaryMarker opens every summary reply. Messages containing it are
	// excluded from context windows so old summaries don't feed new ones.
	SummaryMarker = "*Resumo da conversa*"

	// minContextMessages is the history floor below which AI commands refuse
	// to run. The check happens before any AI call is made.
	minContextMessages = 5

	// contextCap bounds user-requested context windows.
	contextCap = 200

	defaultSummarizeWindow = 50
	defaultChatWindow      = 30

	// senderContextWindow is how many of the sender's own group messages are
	// appended as auxiliary context.
	senderContextWindow = 20
)

const personaHeader = `Você é um bot de WhatsApp engraçado e sarcástico chamado Bostossauro.
Não comece a resposta com o seu próprio nome.
Nunca use o emoji 🦄.
Quando fizer sentido, use pelo menos um emoji de dinossauro (🦖 ou 🦕).`

// PromptInput carries everything the formulator needs to compose one prompt.
type PromptInput struct {
	ConversationID string
	SenderID       string
	SenderName     string
	IsGroup        bool
	Command        Command
	Args           string

	// Complement is quoted-message text, or for the recall command the
	// already-fetched time-filtered message set. Empty means none.
	Complement string

	// Memory is the user's existing memory notes, possibly empty.
	Memory string
}

// PromptBuilder deterministically builds the exact text sent to the AI
// backend. It reads history from the store but never writes anything.
type PromptBuilder struct {
	log   *slog.Logger
	store database.Store
}

// NewPromptBuilder creates a PromptBuilder backed by the given store.
func NewPromptBuilder(store database.Store, log *slog.Logger) *PromptBuilder {
	return &PromptBuilder{
		log:   log.With("component", "prompt"),
		store: store,
	}
}

// Build composes the final prompt. For every command except recall it embeds
// the recent conversation window and requires at least minContextMessages of
// stored history, failing with ErrTooFewMessages before any AI cost is paid.
func (b *PromptBuilder) Build(ctx context.Context, in PromptInput) (string, error) {
	var sb strings.Builder
	sb.WriteString(personaHeader)
	sb.WriteString("\n\n")

	if in.Complement != "" && in.Command != CommandRecall {
		sb.WriteString(fmt.Sprintf("O usuário respondeu a esta mensagem: %q\n\n", in.Complement))
	}

	if in.IsGroup {
		sb.WriteString("Você está em um grupo de amigos. Nenhum deles vai achar qualquer brincadeira ruim, pode falar o que quiser e fazer piadas.\n\n")
	} else {
		sb.WriteString("Você está em uma conversa particular. Seja mais amigável e direto, é só você e o usuário.\n\n")
	}

	sb.WriteString(fmt.Sprintf("O usuário chamado %q enviou: %q\n\n", b.senderName(in), in.Args))

	if in.Command == CommandRecall {
		sb.WriteString("Mensagens recuperadas do histórico:\n")
		sb.WriteString(in.Complement)
		sb.WriteString("\n\nResponda com base no que te pediram para lembrar, usando apenas essas mensagens.\n\n")
	} else {
		window := b.contextWindow(in)
		messages, err := b.store.GetRecentMessages(ctx, in.ConversationID, window, SummaryMarker)
		if err != nil {
			return "", fmt.Errorf("failed to fetch context window: %w", err)
		}
		if len(messages) < minContextMessages {
			b.log.InfoContext(ctx, "Not enough history for AI command",
				"conversation_id", in.ConversationID, "count", len(messages))
			return "", ErrTooFewMessages
		}

		sb.WriteString("Conversa recente:\n")
		sb.WriteString(formatMessages(messages))
		sb.WriteString("\n\n")
	}

	switch in.Command {
	case CommandSummarize:
		sb.WriteString("Resuma a conversa acima destacando os tópicos principais e quem falou mais besteira. Use tópicos para resumir a conversa.\n")
		sb.WriteString(summaryDirective(in.Args))
		sb.WriteString(fmt.Sprintf("\nComece a resposta exatamente com %q.\n\n", SummaryMarker))
	case CommandAsk, CommandChat:
		sb.WriteString("Responda o usuário diretamente pelo nome. Seja criativo, útil e mantenha o tom de uma conversa de WhatsApp.\n\n")
	}

	if strings.TrimSpace(in.Memory) != "" {
		sb.WriteString("O que você já sabe sobre este usuário:\n")
		sb.WriteString(in.Memory)
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("Ao final da resposta, escreva o separador %s e, depois dele, um resumo atualizado do que você sabe sobre este usuário (ou repita o resumo anterior se não aprendeu nada novo). Não inclua especulações nem opiniões subjetivas nesse resumo.\n", MemorySeparator))

	if in.IsGroup && in.SenderID != in.ConversationID {
		senderMsgs, err := b.store.GetSenderMessages(ctx, in.ConversationID, in.SenderID, senderContextWindow)
		if err != nil {
			b.log.WarnContext(ctx, "Failed to fetch sender context, skipping",
				"conversation_id", in.ConversationID, "sender_id", in.SenderID, "error", err)
		} else if len(senderMsgs) > 0 {
			sb.WriteString(fmt.Sprintf("\nÚltimas mensagens de %q neste grupo:\n", b.senderName(in)))
			sb.WriteString(formatMessages(senderMsgs))
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

func (b *PromptBuilder) senderName(in PromptInput) string {
	if in.SenderName != "" {
		return in.SenderName
	}
	return "Desconhecido"
}

// contextWindow returns how many recent messages to embed: a user-supplied
// integer argument when valid and within the cap, else the command default.
func (b *PromptBuilder) contextWindow(in PromptInput) int {
	def := defaultChatWindow
	if in.Command == CommandSummarize {
		def = defaultSummarizeWindow
	}

	for _, field := range strings.Fields(in.Args) {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		if n > 0 && n <= contextCap {
			return n
		}
		return def
	}
	return def
}

// summaryDirective returns the length directive for the summarize command.
// Exactly one directive per tier; "médio" no longer falls through.
func summaryDirective(args string) string {
	tier := ""
	if fields := strings.Fields(args); len(fields) > 0 {
		tier = strings.ToLower(fields[0])
	}

	switch tier {
	case "curto":
		return "Responda de maneira concisa, dois ou três parágrafos, no máximo 120 palavras."
	case "médio", "medio":
		return "Responda com certa concisão (até 2 linhas pra cada assunto), limite em no máximo 5 assuntos e 250 palavras."
	case "completo":
		return "Se aprofunde (até 5 linhas) em cada assunto, no máximo 600 palavras."
	default:
		return "Responda com certa concisão (até 2 linhas pra cada assunto), limite em no máximo 5 assuntos e 250 palavras."
	}
}

// formatMessages renders messages oldest-first as "Name: content" lines so
// the prompt reads as a coherent narrative.
func formatMessages(messages []database.Message) string {
	lines := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		name := m.SenderName
		if name == "" {
			name = "Desconhecido"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, m.Content))
	}
	return strings.Join(lines, "\n")
}
