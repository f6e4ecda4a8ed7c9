// Package currency converts amounts between currencies using the AwesomeAPI
// public quote endpoint.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bostossauro/internal/bot"
)

const defaultBaseURL = "https://economia.awesomeapi.com.br"

// currencyAliases maps the Portuguese names users actually type to ISO codes.
var currencyAliases = map[string]string{
	"real":    "BRL",
	"reais":   "BRL",
	"brl":     "BRL",
	"dolar":   "USD",
	"dólar":   "USD",
	"usd":     "USD",
	"euro":    "EUR",
	"eur":     "EUR",
	"libra":   "GBP",
	"gbp":     "GBP",
	"btc":     "BTC",
	"bitcoin": "BTC",
	"peso":    "ARS",
	"ars":     "ARS",
	"iene":    "JPY",
	"yen":     "JPY",
	"jpy":     "JPY",
}

var currencySymbols = map[string]string{
	"BRL": "R$",
	"USD": "US$",
	"EUR": "€",
	"GBP": "£",
	"BTC": "₿",
	"ARS": "AR$",
	"JPY": "¥",
}

// Service implements bot.CurrencyService over the AwesomeAPI quote endpoint.
type Service struct {
	log     *slog.Logger
	client  *http.Client
	baseURL string
}

// New creates a currency Service. baseURL overrides the public endpoint,
// which the tests use; pass "" for the real API.
func New(baseURL string, log *slog.Logger) *Service {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Service{
		log:     log.With("component", "currency"),
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

type quote struct {
	Bid  string `json:"bid"`
	Name string `json:"name"`
}

// Convert converts amount between the named currencies and returns the
// formatted reply. Currency names accept the Portuguese aliases.
func (s *Service) Convert(ctx context.Context, from, to, amount string) (string, error) {
	fromCode, ok := resolveCurrency(from)
	if !ok {
		return "", fmt.Errorf("%w: %s", bot.ErrUnknownCurrency, from)
	}
	toCode, ok := resolveCurrency(to)
	if !ok {
		return "", fmt.Errorf("%w: %s", bot.ErrUnknownCurrency, to)
	}
	if fromCode == toCode {
		return "", bot.ErrSameCurrency
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(amount, ",", "."))
	if err != nil {
		return "", fmt.Errorf("%w: %s", bot.ErrNotANumber, amount)
	}

	bid, err := s.fetchBid(ctx, fromCode, toCode)
	if err != nil {
		return "", err
	}

	converted := value.Mul(bid)
	s.log.InfoContext(ctx, "Currency converted",
		"from", fromCode, "to", toCode, "rate", bid.String())

	return fmt.Sprintf("💸 *Cotação %s ➝ %s*\n\n%s %s = *%s %s*\n\n_Taxa: %s_",
		fromCode, toCode,
		currencySymbols[fromCode], value.StringFixed(2),
		currencySymbols[toCode], converted.StringFixed(2),
		bid.StringFixed(4)), nil
}

func (s *Service) fetchBid(ctx context.Context, from, to string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/last/%s-%s", s.baseURL, from, to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", bot.ErrServiceFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.ErrorContext(ctx, "Quote request failed", "from", from, "to", to, "error", err)
		return decimal.Zero, fmt.Errorf("%w: %v", bot.ErrServiceFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		// The API answers 404 for pairs it does not trade.
		return decimal.Zero, fmt.Errorf("%w: pair %s-%s", bot.ErrUnknownCurrency, from, to)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: quote API returned %d", bot.ErrServiceFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", bot.ErrServiceFailed, err)
	}

	var payload map[string]quote
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed quote payload: %v", bot.ErrServiceFailed, err)
	}

	entry, ok := payload[from+to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: pair %s-%s missing from payload", bot.ErrServiceFailed, from, to)
	}

	bid, err := decimal.NewFromString(entry.Bid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad bid %q: %v", bot.ErrServiceFailed, entry.Bid, err)
	}
	return bid, nil
}

func resolveCurrency(name string) (string, bool) {
	code, ok := currencyAliases[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}
