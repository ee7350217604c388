// Package statemachine holds the authoritative lifecycle definitions for
// reservations, orders and payments.
package statemachine

import (
	"fmt"
	"strings"
)

// Transition is one legal edge of a lifecycle.
type Transition[S ~string] struct {
	From S
	To   S
}

type transitionKey[S ~string] struct {
	From S
	To   S
}

// Machine is a finite-state table: current state to the set of legal next states.
type Machine[S ~string] struct {
	name        string
	transitions []Transition[S]
	lookup      map[transitionKey[S]]bool
}

func New[S ~string](name string, transitions []Transition[S]) *Machine[S] {
	m := &Machine[S]{
		name:        name,
		transitions: transitions,
		lookup:      make(map[transitionKey[S]]bool, len(transitions)),
	}
	for _, t := range transitions {
		m.lookup[transitionKey[S]{t.From, t.To}] = true
	}
	return m
}

func (m *Machine[S]) Can(from, to S) bool {
	return m.lookup[transitionKey[S]{from, to}]
}

// ValidFrom returns all valid next states from a given state.
func (m *Machine[S]) ValidFrom(from S) []S {
	var nexts []S
	seen := map[S]bool{}
	for _, t := range m.transitions {
		if t.From == from && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// Check returns a *TransitionError when from -> to is not an edge.
func (m *Machine[S]) Check(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	valid := m.ValidFrom(from)
	names := make([]string, 0, len(valid))
	for _, s := range valid {
		names = append(names, string(s))
	}
	return &TransitionError{
		Machine: m.name,
		From:    string(from),
		To:      string(to),
		Valid:   names,
	}
}

type TransitionError struct {
	Machine string
	From    string
	To      string
	Valid   []string
}

func (e *TransitionError) Error() string {
	valid := "none (terminal state)"
	if len(e.Valid) > 0 {
		valid = strings.Join(e.Valid, ", ")
	}
	return fmt.Sprintf("invalid %s transition: %s -> %s; valid transitions from %s are: %s",
		e.Machine, e.From, e.To, e.From, valid)
}
