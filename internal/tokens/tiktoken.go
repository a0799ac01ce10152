package tokens

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// modelEncodings maps model name prefixes to their tiktoken encoding.
// Longer prefixes are listed first so "gpt-4o" wins over "gpt-4".
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4.1", "o200k_base"},
	{"gpt-4o", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"o4", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5-turbo", "cl100k_base"},
	{"text-embedding-3", "cl100k_base"},
}

// defaultEncoding is used for models tiktoken does not know about.
const defaultEncoding = "cl100k_base"

// EncodingForModel returns the tiktoken encoding name for model.
func EncodingForModel(model string) string {
	m := strings.ToLower(model)
	for _, me := range modelEncodings {
		if strings.HasPrefix(m, me.prefix) {
			return me.encoding
		}
	}
	return defaultEncoding
}

// Tiktoken counts tokens with the BPE encoding of an OpenAI model family.
// The encoding is loaded on first use (tiktoken-go may download its ranks).
type Tiktoken struct {
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktoken returns an estimator for model's encoding.
func NewTiktoken(model string) *Tiktoken {
	return &Tiktoken{encoding: EncodingForModel(model)}
}

// Encoding returns the encoding name in use.
func (t *Tiktoken) Encoding() string { return t.encoding }

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("tokens: load tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Estimate implements compact.Estimator.
func (t *Tiktoken) Estimate(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("%w (%d bytes)", ErrInvalidText, len(text))
	}
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}
