// Package srs implements the spaced-repetition scheduling engine.
//
// Grade is a pure SM-2 style transition: given a card's scheduling fields, a
// recall Quality and an explicit "now", it returns the next scheduling state.
// SelectDue, DeckStats and AggregateStats are read-only views over a card
// collection that the caller loads and passes in on every call.
//
// Nothing in this package reads the wall clock or keeps state between calls.
package srs
