package bot

import (
	"errors"
	"fmt"
)

// Typed failure kinds raised by deep handlers and mapped to user-facing text
// exactly once, at the dispatch boundary. Policy rejections (ban, spam,
// quota) are expected outcomes, never logged as bugs.
var (
	// ErrTooFewMessages means the conversation has too little history for the
	// requested analysis. Raised before any AI call is made.
	ErrTooFewMessages = errors.New("too few messages in conversation")

	// ErrUserQuotaExceeded means the sender hit their daily AI command cap.
	ErrUserQuotaExceeded = errors.New("user daily AI quota exceeded")

	// ErrTranslateQuotaExceeded means the sender hit their daily translation cap.
	ErrTranslateQuotaExceeded = errors.New("user daily translate quota exceeded")

	// ErrInvalidSelect means the AI-generated recall query failed shape
	// validation (must be a single SELECT statement).
	ErrInvalidSelect = errors.New("AI did not produce a valid SELECT statement")

	// ErrNoSQLResult means the recall query executed but matched no rows.
	ErrNoSQLResult = errors.New("recall query returned no rows")

	// ErrSQLExec means the recall query failed at execution time.
	ErrSQLExec = errors.New("recall query execution failed")

	// ErrAI means the backend returned an empty or invalid text payload.
	ErrAI = errors.New("AI returned empty response")

	// ErrAllQuotasExhausted means no model anywhere has remaining quota.
	ErrAllQuotasExhausted = errors.New("all model quotas exhausted")

	// ErrRecallUnavailable means no model is available for the recall path;
	// the rest of the bot may still be online.
	ErrRecallUnavailable = errors.New("recall temporarily unavailable")

	// ErrMissingArgs means a command was invoked without required arguments.
	ErrMissingArgs = errors.New("missing command arguments")

	// ErrNotANumber means a numeric argument failed to parse.
	ErrNotANumber = errors.New("argument is not a number")

	// ErrUnknownCurrency means a currency name has no known code mapping.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrSameCurrency means source and target currency are identical.
	ErrSameCurrency = errors.New("source and target currency are the same")

	// ErrUnknownCity means the weather API has no data for the city.
	ErrUnknownCity = errors.New("unknown city")

	// ErrServiceKeyUnavailable means an external API rejected our credentials.
	ErrServiceKeyUnavailable = errors.New("external API key unavailable")

	// ErrServiceFailed is the generic external HTTP service failure.
	ErrServiceFailed = errors.New("external service failed")
)

// UserBannedError is returned while the sender's timeout is still running.
type UserBannedError struct {
	MinutesRemaining int
}

func (e *UserBannedError) Error() string {
	return fmt.Sprintf("user banned for %d more minutes", e.MinutesRemaining)
}

// SpamDetectedError is returned when the sender is inside the cooldown
// window. The failing check itself consumes the cooldown slot.
type SpamDetectedError struct {
	SecondsRemaining int
}

func (e *SpamDetectedError) Error() string {
	return fmt.Sprintf("spam detected, %d seconds remaining", e.SecondsRemaining)
}
