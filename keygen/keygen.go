// Package keygen picks captcha keys that stay readable once glyphs are
// squeezed together.
package keygen

import (
	"errors"
	"math/rand"
)

// MaxAttempts bounds how many times a denied neighbour is redrawn before it
// is accepted anyway.
const MaxAttempts = 5

// Pair is an ordered pair of adjacent glyphs.
type Pair struct {
	First  rune
	Second rune
}

// DeniedPairs blur into a single shape when overlapped.
var DeniedPairs = []Pair{
	{'n', 'n'}, {'n', 'm'}, {'m', 'n'}, {'m', 'm'},
	{'v', 'v'}, {'v', 'w'}, {'w', 'v'}, {'w', 'w'},
	{'q', 'p'}, {'q', 'b'}, {'q', 'h'},
}

type Generator struct {
	Alphabet []rune
	Length   int
	Rand     *rand.Rand
	// Denied defaults to DeniedPairs when nil.
	Denied []Pair
}

func (g *Generator) Generate() (string, error) {
	if len(g.Alphabet) == 0 {
		return "", errors.New("keygen: empty alphabet")
	}
	if g.Length <= 0 {
		return "", errors.New("keygen: key length must be positive")
	}
	denied := g.Denied
	if denied == nil {
		denied = DeniedPairs
	}

	key := make([]rune, g.Length)
	for i := range key {
		var symbol rune
		for attempt := 1; ; attempt++ {
			symbol = g.Alphabet[g.Rand.Intn(len(g.Alphabet))]
			if i == 0 || attempt > MaxAttempts || !isDenied(denied, key[i-1], symbol) {
				break
			}
		}
		key[i] = symbol
	}
	return string(key), nil
}

func isDenied(denied []Pair, first, second rune) bool {
	for _, p := range denied {
		if p.First == first && p.Second == second {
			return true
		}
	}
	return false
}
