// SPDX-License-Identifier: ice License 1.0

package auth

import (
	"context"
	"log"
)

func NewStatic(tokens ...StaticToken) *Static {
	s := new(Static)
	s.Reload(tokens)

	return s
}

// Reload swaps the whole token list at once; in-flight lookups see either the old or the new one.
func (s *Static) Reload(tokens []StaticToken) {
	m := make(map[string]string, len(tokens))
	for _, t := range tokens {
		if t.Token == "" || t.UserID == "" {
			log.Printf("WARN: skipping incomplete static token entry for user `%v`", t.UserID)

			continue
		}
		m[t.Token] = t.UserID
	}
	s.tokens.Store(&m)
}

func (s *Static) UserID(_ context.Context, token string) (string, error) {
	if userID, found := (*s.tokens.Load())[token]; found {
		return userID, nil
	}

	return "", ErrUnauthenticated
}

func (s *Static) Len() int {
	return len(*s.tokens.Load())
}
