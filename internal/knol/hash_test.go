package knol

import "testing"

func TestNormalize(t *testing.T) {
	expected := "what is htmx?\na library for ajax.\nweb development"
	normalized := Normalize("  What is HTMX? \r\n", "A library for AJAX.", "Web Development")

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// Hash for "ann\nq\na"
		expectedHash := "33167befe787f58c83e4415eacf3b68e0810a536d1286802a1076d5d2cc1ab70"
		hash := Hash("ann", "Q", "A")

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		if Hash("ann", "Test", "") != Hash("ann", "Test", "") {
			t.Error("Expected hashes for identical cards to be the same")
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		h1 := Hash("ann", "  what is go? ", "A programming language.")
		h2 := Hash("ann", "What Is Go?", "A programming language.")
		if h1 != h2 {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		if Hash("ann", "Card 1", "") == Hash("ann", "Card 2", "") {
			t.Error("Expected hashes for different cards to be different")
		}
	})

	t.Run("owners get distinct ids", func(t *testing.T) {
		if Hash("ann", "Card", "x") == Hash("bob", "Card", "x") {
			t.Error("Expected the same card of two owners to hash differently")
		}
	})
}
