package random_test

import (
	"strings"
	"testing"

	"github.com/RogueTeam/ilpgateway/random"
	"github.com/stretchr/testify/assert"
)

func Test_String(t *testing.T) {
	assertions := assert.New(t)

	s := random.String(random.PseudoRand, random.CharsetDigits, 32)
	assertions.Len(s, 32)
	for _, r := range s {
		assertions.True(strings.ContainsRune(random.CharsetDigits, r), "unexpected rune %q", r)
	}
}

func Test_Token(t *testing.T) {
	assertions := assert.New(t)

	seen := make(map[string]struct{})
	for range 1_000 {
		token := random.Token(24)
		assertions.Len(token, 24)
		for _, r := range token {
			assertions.True(strings.ContainsRune(random.CharsetAlphaNumeric, r), "unexpected rune %q", r)
		}

		_, found := seen[token]
		assertions.False(found, "token repeated")
		seen[token] = struct{}{}
	}

	assertions.Empty(random.Token(0))
	assertions.Len(random.Token(1), 1)
	assertions.Len(random.Token(500), 500)
}
