package idgen

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestULIDGenerator_Generate(t *testing.T) {
	g := NewULIDGenerator()

	prev := g.Generate()
	if _, err := ulid.ParseStrict(prev); err != nil {
		t.Fatalf("invalid ulid %q: %v", prev, err)
	}

	for i := 0; i < 1000; i++ {
		next := g.Generate()
		if next <= prev {
			t.Fatalf("ids not increasing: %q then %q", prev, next)
		}
		prev = next
	}
}
