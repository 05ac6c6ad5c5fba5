package core

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens returns the number of cl100k_base tokens in text.
// The encoding is loaded once per process; if loading fails (e.g. the BPE
// ranks are unreachable) a four-characters-per-token estimate is used
// instead so callers always get a usable number.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("token encoding unavailable, falling back to estimate", "err", err)
			return
		}
		encoding = enc
	})

	if encoding == nil {
		return len(text) / 4
	}

	return len(encoding.Encode(text, nil, nil))
}
