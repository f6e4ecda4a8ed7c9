package bot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiceTier(t *testing.T) {
	tests := []struct {
		val, max int
		want     string
	}{
		{1, 20, "❌ FALHA CRÍTICA!"},
		{2, 20, "🫠 meh."},
		{9, 20, "🫠 meh."},
		{10, 20, "🫤 até que não foi ruim."},
		{13, 20, "🫤 até que não foi ruim."},
		{14, 20, "😎 nice."},
		{19, 20, "😎 nice."},
		{20, 20, "🎰 SORTE GRANDE!"},
		{1, 2, "❌ FALHA CRÍTICA!"},
		{2, 2, "🎰 SORTE GRANDE!"},
		{1, 1, "❌ FALHA CRÍTICA!"},
		{3, 6, "🫤 até que não foi ruim."},
		{100, 100, "🎰 SORTE GRANDE!"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.val, tt.max), func(t *testing.T) {
			assert.Equal(t, tt.want, diceTier(tt.val, tt.max))
		})
	}
}

func TestRollDice(t *testing.T) {
	fixed := func(val int) func(int) int {
		return func(int) int { return val }
	}

	t.Run("valid roll", func(t *testing.T) {
		got := rollDice("20", fixed(7))
		assert.Equal(t, "🎲 O dado caiu em: *7* \n🫠 meh.", got)
	})

	t.Run("max roll", func(t *testing.T) {
		got := rollDice("6", fixed(6))
		assert.Contains(t, got, "*6*")
		assert.Contains(t, got, "SORTE GRANDE")
	})

	t.Run("non-numeric argument", func(t *testing.T) {
		assert.Equal(t, msgInvalidDice, rollDice("abc", fixed(1)))
	})

	t.Run("zero sides", func(t *testing.T) {
		assert.Equal(t, msgInvalidDice, rollDice("0", fixed(1)))
	})

	t.Run("negative sides", func(t *testing.T) {
		assert.Equal(t, msgInvalidDice, rollDice("-4", fixed(1)))
	})
}
