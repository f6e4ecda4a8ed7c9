// Package weather answers current-conditions and next-day-forecast queries
// via the OpenWeatherMap API, with pt-BR descriptions.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bostossauro/internal/bot"
)

const defaultBaseURL = "https://api.openweathermap.org"

// Service implements bot.WeatherService over OpenWeatherMap.
type Service struct {
	log     *slog.Logger
	client  *http.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

// New creates a weather Service. baseURL overrides the public endpoint for
// tests; pass "" for the real API.
func New(apiKey, baseURL string, log *slog.Logger) *Service {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Service{
		log:     log.With("component", "weather"),
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		now:     time.Now,
	}
}

type conditions struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	DtTxt string `json:"dt_txt"`
}

type currentPayload struct {
	conditions
	Name string `json:"name"`
}

type forecastPayload struct {
	List []conditions `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// Current returns the formatted current conditions for the city.
func (s *Service) Current(ctx context.Context, city string) (string, error) {
	var payload currentPayload
	if err := s.get(ctx, "/data/2.5/weather", city, &payload); err != nil {
		return "", err
	}

	desc := ""
	if len(payload.Weather) > 0 {
		desc = payload.Weather[0].Description
	}

	return fmt.Sprintf("%s *Clima em %s agora*\n\n%s\n🌡️ Temperatura: *%.0f°C* (sensação de %.0f°C)\n💧 Umidade: %d%%",
		weatherEmoji(desc), payload.Name, capitalize(desc),
		payload.Main.Temp, payload.Main.FeelsLike, payload.Main.Humidity), nil
}

// Forecast returns tomorrow's outlook, aggregated from the 3-hour slots.
func (s *Service) Forecast(ctx context.Context, city string) (string, error) {
	var payload forecastPayload
	if err := s.get(ctx, "/data/2.5/forecast", city, &payload); err != nil {
		return "", err
	}

	tomorrow := s.now().AddDate(0, 0, 1).Format("2006-01-02")
	var (
		minTemp, maxTemp float64
		desc             string
		found            bool
	)
	for _, slot := range payload.List {
		if !strings.HasPrefix(slot.DtTxt, tomorrow) {
			continue
		}
		if !found {
			minTemp, maxTemp = slot.Main.TempMin, slot.Main.TempMax
			found = true
		}
		if slot.Main.TempMin < minTemp {
			minTemp = slot.Main.TempMin
		}
		if slot.Main.TempMax > maxTemp {
			maxTemp = slot.Main.TempMax
		}
		// Midday slot gives the most representative description.
		if strings.Contains(slot.DtTxt, "12:00") && len(slot.Weather) > 0 {
			desc = slot.Weather[0].Description
		}
		if desc == "" && len(slot.Weather) > 0 {
			desc = slot.Weather[0].Description
		}
	}
	if !found {
		return "", fmt.Errorf("%w: no forecast slots for tomorrow", bot.ErrServiceFailed)
	}

	return fmt.Sprintf("%s *Previsão pra amanhã em %s*\n\n%s\n🌡️ Mínima: *%.0f°C* / Máxima: *%.0f°C*",
		weatherEmoji(desc), payload.City.Name, capitalize(desc), minTemp, maxTemp), nil
}

func (s *Service) get(ctx context.Context, path, city string, out any) error {
	if s.apiKey == "" {
		return bot.ErrServiceKeyUnavailable
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", s.apiKey)
	query.Set("units", "metric")
	query.Set("lang", "pt_br")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", bot.ErrServiceFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.ErrorContext(ctx, "Weather request failed", "city", city, "error", err)
		return fmt.Errorf("%w: %v", bot.ErrServiceFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", bot.ErrUnknownCity, city)
	case http.StatusUnauthorized:
		return bot.ErrServiceKeyUnavailable
	default:
		return fmt.Errorf("%w: weather API returned %d", bot.ErrServiceFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed weather payload: %v", bot.ErrServiceFailed, err)
	}
	return nil
}

// weatherEmoji picks an emoji from the pt-BR condition description.
func weatherEmoji(desc string) string {
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(lower, "tempestade") || strings.Contains(lower, "trovoada"):
		return "⛈️"
	case strings.Contains(lower, "chuva") || strings.Contains(lower, "garoa"):
		return "🌧️"
	case strings.Contains(lower, "neve"):
		return "❄️"
	case strings.Contains(lower, "névoa") || strings.Contains(lower, "neblina") || strings.Contains(lower, "nevoeiro"):
		return "🌫️"
	case strings.Contains(lower, "nublado") || strings.Contains(lower, "nuvens"):
		return "☁️"
	case strings.Contains(lower, "limpo") || strings.Contains(lower, "sol"):
		return "☀️"
	}
	return "🌡️"
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
