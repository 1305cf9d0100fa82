// Package parser extracts flashcards from markdown notes.
//
// A card starts with a "Q:" line, followed by "A:" and optionally "C:"
// (context). Each block runs until the next prefix, a "---" separator or the
// next "Q:". A "D:" line names the deck for the cards after it; before any
// "D:" line cards belong to the file's default deck.
package parser

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	deckPrefix     = "D:"
	separator      = "---"
)

// Entry is one parsed card.
type Entry struct {
	Deck     string
	Question string
	Answer   string
	Context  string
}

// Front is the prompt side of the card.
func (e Entry) Front() string { return e.Question }

// Back is the answer, followed by the context when there is one.
func (e Entry) Back() string {
	if e.Context == "" {
		return e.Answer
	}
	return e.Answer + "\n\n" + e.Context
}

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
)

// DeckName is the default deck for a file: its base name without extension.
func DeckName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFile reads the file at path and extracts all cards.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file, DeckName(path))
}

// Parse extracts all cards from r. Cards without a question are dropped.
func Parse(r io.Reader, defaultDeck string) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var (
		entries []Entry
		current = Entry{Deck: defaultDeck}
		block   []string
		st      = seeking
		deck    = defaultDeck
	)

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch st {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		case readingContext:
			current.Context = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Question != "" {
			entries = append(entries, current)
		}
		current = Entry{Deck: deck}
		st = seeking
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if line == separator {
			finishCard()
			continue
		}
		if rest, ok := cutPrefix(line, deckPrefix); ok {
			finishCard()
			if rest != "" {
				deck = rest
			} else {
				deck = defaultDeck
			}
			current.Deck = deck
			continue
		}

		var next state
		rest, matched := cutPrefix(line, questionPrefix)
		if matched {
			next = readingQuestion
		} else if rest, matched = cutPrefix(line, answerPrefix); matched {
			next = readingAnswer
		} else if rest, matched = cutPrefix(line, contextPrefix); matched {
			next = readingContext
		}

		if !matched {
			if st != seeking {
				block = append(block, line)
			}
			continue
		}

		// A new question always starts a new card.
		if next == readingQuestion && st != seeking {
			finishCard()
		} else {
			flushBlock()
		}
		st = next
		block = append(block, rest)
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// cutPrefix strips prefix and at most one following space.
func cutPrefix(line, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}
	rest, _ = strings.CutPrefix(rest, " ")
	return strings.TrimSpace(rest), true
}
