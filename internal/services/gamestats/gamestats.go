// Package gamestats looks up League of Legends ranked stats for a
// "Nick #Tag" Riot identity, using the account-v1 and league-v4 APIs.
package gamestats

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

const (
	defaultAccountBaseURL = "https://americas.api.riotgames.com"
	defaultRegionBaseURL  = "https://br1.api.riotgames.com"
)

// Service implements bot.GameStatsService over the Riot API.
type Service struct {
	log            *slog.Logger
	client         *http.Client
	accountBaseURL string
	regionBaseURL  string
	apiKey         string
}

// New creates a game-stats Service. The base URLs override the public
// endpoints for tests; pass "" for the real APIs.
func New(apiKey, accountBaseURL, regionBaseURL string, log *slog.Logger) *Service {
	if accountBaseURL == "" {
		accountBaseURL = defaultAccountBaseURL
	}
	if regionBaseURL == "" {
		regionBaseURL = defaultRegionBaseURL
	}
	return &Service{
		log:            log.With("component", "gamestats"),
		client:         &http.Client{Timeout: 10 * time.Second},
		accountBaseURL: accountBaseURL,
		regionBaseURL:  regionBaseURL,
		apiKey:         apiKey,
	}
}

type riotAccount struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type leagueEntry struct {
	QueueType string `json:"queueType"`
	Tier      string `json:"tier"`
	Rank      string `json:"rank"`
	LP        int    `json:"leaguePoints"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
}

var queueNames = map[string]string{
	"RANKED_SOLO_5x5": "Solo/Duo",
	"RANKED_FLEX_SR":  "Flex",
}

var tierEmojis = map[string]string{
	"IRON":        "🪨",
	"BRONZE":      "🥉",
	"SILVER":      "🥈",
	"GOLD":        "🥇",
	"PLATINUM":    "💠",
	"EMERALD":     "💚",
	"DIAMOND":     "💎",
	"MASTER":      "🟣",
	"GRANDMASTER": "🔴",
	"CHALLENGER":  "👑",
}

// Lookup resolves "Nick #Tag" to ranked stats. A missing tag or an unknown
// identity maps to the respective typed errors.
func (s *Service) Lookup(ctx context.Context, query string) (string, error) {
	name, tag, ok := splitRiotID(query)
	if !ok {
		return "", fmt.Errorf("%w: expected Nick #Tag", bot.ErrMissingArgs)
	}

	account, err := s.fetchAccount(ctx, name, tag)
	if err != nil {
		return "", err
	}

	entries, err := s.fetchLeagueEntries(ctx, account.PUUID)
	if err != nil {
		return "", err
	}

	s.log.InfoContext(ctx, "Game stats fetched",
		"game_name", account.GameName, "tag", account.TagLine, "queues", len(entries))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎮 *%s #%s*\n", account.GameName, account.TagLine))
	if len(entries) == 0 {
		sb.WriteString("\nSem partidas ranqueadas. Unranked de respeito (ou medo de perder elo).")
		return sb.String(), nil
	}

	for _, entry := range entries {
		queue, ok := queueNames[entry.QueueType]
		if !ok {
			continue
		}
		total := entry.Wins + entry.Losses
		winrate := 0
		if total > 0 {
			winrate = entry.Wins * 100 / total
		}
		sb.WriteString(fmt.Sprintf("\n%s *%s:* %s %s (%d PdL)\n📈 %dV / %dD (%d%% de winrate)\n",
			tierEmojis[entry.Tier], queue, capitalizeTier(entry.Tier), entry.Rank,
			entry.LP, entry.Wins, entry.Losses, winrate))
	}
	return strings.TrimSpace(sb.String()), nil
}

func (s *Service) fetchAccount(ctx context.Context, name, tag string) (*riotAccount, error) {
	path := fmt.Sprintf("/riot/account/v1/accounts/by-riot-id/%s/%s",
		url.PathEscape(name), url.PathEscape(tag))

	var account riotAccount
	if err := s.get(ctx, s.accountBaseURL+path, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Service) fetchLeagueEntries(ctx context.Context, puuid string) ([]leagueEntry, error) {
	path := "/lol/league/v4/entries/by-puuid/" + url.PathEscape(puuid)

	var entries []leagueEntry
	if err := s.get(ctx, s.regionBaseURL+path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) get(ctx context.Context, fullURL string, out any) error {
	if s.apiKey == "" {
		return bot.ErrServiceKeyUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", bot.ErrServiceFailed, err)
	}
	req.Header.Set("X-Riot-Token", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.ErrorContext(ctx, "Riot API request failed", "error", err)
		return fmt.Errorf("%w: %v", bot.ErrServiceFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: riot id not found", bot.ErrServiceFailed)
	case http.StatusUnauthorized, http.StatusForbidden:
		return bot.ErrServiceKeyUnavailable
	default:
		return fmt.Errorf("%w: riot API returned %d", bot.ErrServiceFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed riot payload: %v", bot.ErrServiceFailed, err)
	}
	return nil
}

// splitRiotID parses "Nick #Tag" (also accepting "Nick#Tag").
func splitRiotID(query string) (name, tag string, ok bool) {
	name, tag, found := strings.Cut(query, "#")
	name = strings.TrimSpace(name)
	tag = strings.TrimSpace(tag)
	if !found || name == "" || tag == "" {
		return "", "", false
	}
	return name, tag, true
}

func capitalizeTier(tier string) string {
	if tier == "" {
		return tier
	}
	lower := strings.ToLower(tier)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
