package utils

import "testing"

func TestTokenize(t *testing.T) {
	tokens := Tokenize("  one\ttwo\nthree  four ")
	if len(tokens) != 4 {
		t.Fatalf("tokens = %v", tokens)
	}
	if tokens[0] != "one" || tokens[3] != "four" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestCountTokens(t *testing.T) {
	if n := CountTokens("a b c"); n != 3 {
		t.Errorf("count = %d", n)
	}
	if n := CountTokens("   "); n != 0 {
		t.Errorf("whitespace only count = %d", n)
	}
}

func TestJoinTokensRoundTrip(t *testing.T) {
	tokens := Tokenize("alpha   beta\tgamma")
	if got := JoinTokens(tokens); got != "alpha beta gamma" {
		t.Errorf("joined = %q", got)
	}
	if CountTokens(JoinTokens(tokens)) != len(tokens) {
		t.Error("join changed the token count")
	}
}
