package lexicon

import (
	"bytes"
	_ "embed"
	"sync"
)

//go:embed data/lexicon.json
var defaultLexicon []byte

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
	errDefault      error
)

// Default returns the built-in English to Vietnamese lexicon.
func Default() (*Resolver, error) {
	defaultOnce.Do(func() {
		defaultResolver, errDefault = LoadJSON(bytes.NewReader(defaultLexicon))
	})
	return defaultResolver, errDefault
}
