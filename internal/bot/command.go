package bot

import "strings"

// Command identifies one of the bot's capabilities.
type Command int

const (
	CommandNone Command = iota
	// CommandChat is free-form conversation: any unprefixed private message,
	// or a group reply quoting the bot.
	CommandChat
	CommandDice
	CommandMenu
	CommandHelp
	CommandSummarize
	CommandAsk
	CommandRecall
	CommandTranslate
	CommandCurrency
	CommandWeather
	CommandGameStats
	CommandNotes
	CommandTimeout
	CommandPDF
	CommandSticker
	CommandStatus
)

// String returns the command's canonical verb, used in logs.
func (c Command) String() string {
	switch c {
	case CommandChat:
		return "chat"
	case CommandDice:
		return "dice"
	case CommandMenu:
		return "menu"
	case CommandHelp:
		return "help"
	case CommandSummarize:
		return "resumo"
	case CommandAsk:
		return "gpt"
	case CommandRecall:
		return "lembrar"
	case CommandTranslate:
		return "tradutor"
	case CommandCurrency:
		return "cotacao"
	case CommandWeather:
		return "clima"
	case CommandGameStats:
		return "lol"
	case CommandNotes:
		return "notas"
	case CommandTimeout:
		return "timeout"
	case CommandPDF:
		return "pdf"
	case CommandSticker:
		return "sticker"
	case CommandStatus:
		return "status"
	default:
		return "none"
	}
}

// IsAIBacked reports whether the command calls an AI backend.
func (c Command) IsAIBacked() bool {
	switch c {
	case CommandChat, CommandAsk, CommandSummarize, CommandRecall, CommandTranslate:
		return true
	}
	return false
}

// IsConversational reports whether the command goes through the per-sender
// spam cooldown.
func (c Command) IsConversational() bool {
	return c.IsAIBacked()
}

// IsAdminOnly reports whether the command requires the configured admin.
func (c Command) IsAdminOnly() bool {
	return c == CommandTimeout || c == CommandStatus
}

// commandPrefixes maps verb prefixes to commands. Longer prefixes are listed
// first so "!status" never classifies as "!s" and "!sticker" wins over "!s".
// "!d" stays last: it matches any remaining "!d..." text, numeric or not,
// and the dice handler decides validity.
var commandPrefixes = []struct {
	prefix string
	cmd    Command
}{
	{"!tradutor", CommandTranslate},
	{"!lembrar", CommandRecall},
	{"!cotacao", CommandCurrency},
	{"!cotação", CommandCurrency},
	{"!timeout", CommandTimeout},
	{"!sticker", CommandSticker},
	{"!resumo", CommandSummarize},
	{"!status", CommandStatus},
	{"!ajuda", CommandHelp},
	{"!notas", CommandNotes},
	{"!clima", CommandWeather},
	{"!help", CommandHelp},
	{"!menu", CommandMenu},
	{"!gpt", CommandAsk},
	{"!lol", CommandGameStats},
	{"!pdf", CommandPDF},
	{"!s", CommandSticker},
	{"!d", CommandDice},
}

// ParseCommand classifies raw text into a command and its argument string.
// Matching is case-insensitive on the prefix. Text without the "!" marker
// returns CommandNone; the dispatcher decides whether it becomes free-form
// chat (private or reply-to-bot) or stays inert (group).
func ParseCommand(text string) (Command, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "!") {
		return CommandNone, ""
	}

	lower := strings.ToLower(trimmed)
	for _, entry := range commandPrefixes {
		if !strings.HasPrefix(lower, entry.prefix) {
			continue
		}
		rest := trimmed[len(entry.prefix):]
		// A prefix match inside a longer word ("!loló", "!sei") is not this
		// command, except for dice, whose argument is glued to the prefix
		// ("!d20").
		if entry.cmd != CommandDice && rest != "" && rest[0] != ' ' {
			continue
		}
		return entry.cmd, strings.TrimSpace(rest)
	}

	return CommandNone, ""
}
