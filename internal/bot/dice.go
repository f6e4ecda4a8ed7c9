package bot

import (
	"fmt"
	"strconv"
)

// msgInvalidDice is the sentinel reply for a malformed dice command. It is a
// normal reply, not an error: the original behavior answers inline.
const msgInvalidDice = "Digita um número válido, imbecil"

// Flavor tiers for dice results. The tiers are evaluated by successive `<`
// comparisons in this exact order; do not rewrite them as ranges, the
// boundaries for small N depend on the evaluation order.
func diceTier(val, max int) string {
	switch {
	case val == 1:
		return "❌ FALHA CRÍTICA!"
	case float64(val) < float64(max)/2:
		return "🫠 meh."
	case float64(val) < float64(max)/1.5:
		return "🫤 até que não foi ruim."
	case val < max:
		return "😎 nice."
	case val == max:
		return "🎰 SORTE GRANDE!"
	}
	return ""
}

// rollDice handles "!d<N>". roll must return a uniform value in [1, N].
func rollDice(args string, roll func(n int) int) string {
	max, err := strconv.Atoi(args)
	if err != nil || max <= 0 {
		return msgInvalidDice
	}

	val := roll(max)
	return fmt.Sprintf("🎲 O dado caiu em: *%d* \n%s", val, diceTier(val, max))
}
