package domain

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiryBoundary(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := Token{Code: "ANNA10", IssuedAt: issued}

	assert.False(t, tok.Expired(issued))
	assert.False(t, tok.Expired(issued.Add(29*24*time.Hour)))
	assert.False(t, tok.Expired(issued.Add(TokenTTL)))
	assert.True(t, tok.Expired(issued.Add(TokenTTL+time.Second)))
	assert.True(t, tok.Expired(issued.Add(31*24*time.Hour)))
}

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"anna10":     "ANNA10",
		"  Anna-10 ": "ANNA-10",
		"a_b":        "A_B",
		"":           "",
		"   ":        "",
		"bad code":   "",
		"drop;table": "",
		"ÄNNA":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonicalize(in), "input %q", in)
	}
	assert.Equal(t, "", Canonicalize(strings.Repeat("A", 33)))
	assert.Equal(t, strings.Repeat("A", 32), Canonicalize(strings.Repeat("a", 32)))
}

func TestExtractCodeFromURL(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"https://shop.example/rings?ref=anna10", "ANNA10"},
		{"https://shop.example/?consultant=Maria", "MARIA"},
		{"https://shop.example/?ref=&consultant=maria", "MARIA"},
		{"https://shop.example/?ref=anna10&consultant=maria", "ANNA10"},
		{"https://shop.example/?utm_source=ig", ""},
		{"https://shop.example/?ref=%20%20", ""},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ExtractCodeFromURL(u), tc.raw)
	}
	assert.Equal(t, "", ExtractCodeFromURL(nil))
}
