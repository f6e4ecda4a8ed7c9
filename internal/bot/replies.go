package bot

import (
	"errors"
	"fmt"
	"strings"
)

// User-facing texts for each typed failure. Only this file translates errors
// into messages; no other layer talks to the user about failures.
const (
	msgTooFewMessages = "❌ Pô, tem nem mensagem direito pra eu ler... Conversem mais um pouco aí depois me chama."
	msgInvalidSelect  = "❌ A IA pirou e não me deu a query SQL. Tenta ser mais específico na pergunta."
	msgNoSQLResult    = "🔍 Não encontrei nenhuma mensagem para o período que você pediu, ou a IA deu um select doido."
	msgSQLExec        = "Não sei lê"
	msgAIError        = "😵 A IA pifou ou tá dormindo. Tenta de novo já já."
	msgAIOverload     = "🔥 A IA tá fritando de tanta gente usando! Tenta de novo daqui 1 minutinho que ela esfria."
	msgAllQuotas      = "😵 Minhas baterias (e cotas do Google) acabaram por hoje! Volto amanhã cedinho."
	msgRecallOff      = "⏳ Comando !lembrar indisponível temporariamente"
	msgUnknownCmd     = "⚠️ Esse comando não existe não."
	msgMissingArgs    = "⚠️ Opa, tá faltando coisa nesse comando. Escreve direito aí."
	msgNotANumber     = "⚠️ Isso aí não é número não, chefe."
	msgUnknownCoin    = "💱 Nunca nem vi essa moeda. Tenta real, dolar, euro, libra, btc, peso ou iene."
	msgSameCoin       = "🤡 Converter uma moeda pra ela mesma? Dá o mesmo valor, gênio."
	msgUnknownCity    = "🗺️ Não achei essa cidade no mapa não. Escreveu certo?"
	msgKeyUnavailable = "🔑 Minha chave da API expirou. Reclama com o dev."
	msgServiceFailed  = "⛓️‍💥 Erro na API. O serviço deve ter quebrado."
	msgUserQuota      = "🚫 Você já gastou sua cota de IA de hoje. Volta amanhã."
	msgTranslateQuota = "🚫 Chega de tradução por hoje. Compra um dicionário."
	msgInternal       = "😵 Ocorreu um erro interno bizarro. O dev deve ter feito gambiarra."
)

// ReplyForError maps a typed error to the Portuguese text shown to the user.
// The second return reports whether the error was classified; unclassified
// errors are internal and must be logged with full context by the caller.
func ReplyForError(err error) (string, bool) {
	if err == nil {
		return "", true
	}

	var banned *UserBannedError
	if errors.As(err, &banned) {
		return fmt.Sprintf("🚫 Você tá de castigo! Volta em %d minuto(s) e pensa no que fez.", banned.MinutesRemaining), true
	}
	var spam *SpamDetectedError
	if errors.As(err, &spam) {
		return fmt.Sprintf("🐌 Calma aí, apressado! Espera %d segundo(s) pra mandar outro comando.", spam.SecondsRemaining), true
	}

	switch {
	case errors.Is(err, ErrTooFewMessages):
		return msgTooFewMessages, true
	case errors.Is(err, ErrInvalidSelect):
		return msgInvalidSelect, true
	case errors.Is(err, ErrNoSQLResult):
		return msgNoSQLResult, true
	case errors.Is(err, ErrSQLExec):
		return msgSQLExec, true
	case errors.Is(err, ErrAllQuotasExhausted):
		return msgAllQuotas, true
	case errors.Is(err, ErrRecallUnavailable):
		return msgRecallOff, true
	case errors.Is(err, ErrUserQuotaExceeded):
		return msgUserQuota, true
	case errors.Is(err, ErrTranslateQuotaExceeded):
		return msgTranslateQuota, true
	case errors.Is(err, ErrMissingArgs):
		return msgMissingArgs, true
	case errors.Is(err, ErrNotANumber):
		return msgNotANumber, true
	case errors.Is(err, ErrUnknownCurrency):
		return msgUnknownCoin, true
	case errors.Is(err, ErrSameCurrency):
		return msgSameCoin, true
	case errors.Is(err, ErrUnknownCity):
		return msgUnknownCity, true
	case errors.Is(err, ErrServiceKeyUnavailable):
		return msgKeyUnavailable, true
	case errors.Is(err, ErrServiceFailed):
		return msgServiceFailed, true
	case isOverloadError(err):
		return msgAIOverload, true
	case errors.Is(err, ErrAI):
		return msgAIError, true
	}

	return msgInternal, false
}

// isOverloadError pattern-matches backend rate-limit/overload responses by
// message content, mirroring how the API surfaces them.
func isOverloadError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "429")
}
