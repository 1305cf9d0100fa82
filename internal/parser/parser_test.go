package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedQ     string
		expectedA     string
		expectedC     string
	}{
		{
			name:          "Simple Q&A",
			input:         "Q: What is the capital of France?\nA: Paris",
			expectedCards: 1,
			expectedQ:     "What is the capital of France?",
			expectedA:     "Paris",
		},
		{
			name:          "Simple Q, A, and C",
			input:         "Q: What is 1+1?\nA: 2\nC: Basic arithmetic",
			expectedCards: 1,
			expectedQ:     "What is 1+1?",
			expectedA:     "2",
			expectedC:     "Basic arithmetic",
		},
		{
			name: "Multiline Answer",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expectedCards: 1,
			expectedQ:     "What are the primary colors?",
			expectedA:     "Red\nBlue\nYellow",
		},
		{
			name: "Two Cards",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name: "Separator ends a card",
			input: `
Q: First question
A: First answer
---
Some prose that is not part of any card.
Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no questions.",
			expectedCards: 0,
		},
		{
			name:          "Answer without question is dropped",
			input:         "A: orphan answer",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "Q:Question\nA:Answer",
			expectedCards: 1,
			expectedQ:     "Question",
			expectedA:     "Answer",
		},
		{
			name:          "Windows line endings",
			input:         "Q: Question\r\nA: Answer\r\n",
			expectedCards: 1,
			expectedQ:     "Question",
			expectedA:     "Answer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input), "notes")
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(entries) != tc.expectedCards {
				t.Fatalf("Expected %d cards, but got %d", tc.expectedCards, len(entries))
			}

			if tc.expectedCards == 1 {
				e := entries[0]
				if e.Question != tc.expectedQ {
					t.Errorf("Expected Question to be '%s', but got '%s'", tc.expectedQ, e.Question)
				}
				if e.Answer != tc.expectedA {
					t.Errorf("Expected Answer to be '%s', but got '%s'", tc.expectedA, e.Answer)
				}
				if e.Context != tc.expectedC {
					t.Errorf("Expected Context to be '%s', but got '%s'", tc.expectedC, e.Context)
				}
				if e.Deck != "notes" {
					t.Errorf("Expected Deck to be 'notes', but got '%s'", e.Deck)
				}
			}
		})
	}
}

func TestParseDeckDirective(t *testing.T) {
	input := `
Q: Default deck question
A: one
D: spanish
Q: ¿Qué hora es?
A: What time is it?
Q: Hola
A: Hello
D:
Q: Back to default
A: two
`
	entries, err := Parse(strings.NewReader(input), "notes")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"notes", "spanish", "spanish", "notes"}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d cards, but got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Deck != want[i] {
			t.Errorf("card %d (%q): Deck = %q, want %q", i, e.Question, e.Deck, want[i])
		}
	}
}

func TestEntryBack(t *testing.T) {
	e := Entry{Question: "q", Answer: "a"}
	if got := e.Back(); got != "a" {
		t.Errorf("Back() = %q, want %q", got, "a")
	}
	e.Context = "c"
	if got := e.Back(); got != "a\n\nc" {
		t.Errorf("Back() = %q, want %q", got, "a\n\nc")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go-basics.md")
	if err := os.WriteFile(path, []byte("Q: What is a slice?\nA: A view over an array."), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(entries) != 1 || entries[0].Deck != "go-basics" {
		t.Errorf("ParseFile = %+v", entries)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("Expected an error for a missing file, but got nil")
	}
}
