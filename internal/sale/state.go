package sale

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of a sale. Settlement, invoicing and
// partial payment are tracked by fields, not states.
type State string

const (
	StateOpen      State = "ABIERTO"
	StatePickedUp  State = "RETIRADO"
	StateWeighed   State = "ROMANEO"
	StateFinalized State = "FINALIZADO"
	StateCancelled State = "CANCELADO"
)

var transitions = map[State][]State{
	StateOpen:      {StatePickedUp, StateCancelled},
	StatePickedUp:  {StateWeighed, StateCancelled},
	StateWeighed:   {StateFinalized, StateCancelled},
	StateFinalized: nil,
	StateCancelled: nil,
}

// legacyStates maps labels written by earlier versions of the back office.
var legacyStates = map[string]State{
	"PENDIENTE":      StateOpen,
	"EN_FRIGORIFICO": StateWeighed,
	"LIQUIDADO":      StateWeighed,
	"FACTURADO":      StateWeighed,
	"PAGO_PARCIAL":   StateWeighed,
}

var stateLabels = map[State]string{
	StateOpen:      "Abierto",
	StatePickedUp:  "Retirado",
	StateWeighed:   "Romaneo",
	StateFinalized: "Finalizado",
	StateCancelled: "Cancelado",
}

// ParseState accepts current and legacy state names, case-insensitively.
func ParseState(s string) (State, error) {
	key := strings.ToUpper(strings.TrimSpace(s))

	if st := State(key); st.Valid() {
		return st, nil
	}

	if st, ok := legacyStates[key]; ok {
		return st, nil
	}

	return "", fmt.Errorf("unknown sale state %q", s)
}

func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s State) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s State) Label() string {
	if l, ok := stateLabels[s]; ok {
		return l
	}

	return string(s)
}

// Next lists the states reachable from s in one step.
func (s State) Next() []State {
	return transitions[s]
}

// CanTransition reports whether to is reachable from from, ignoring guards.
func CanTransition(from, to State) bool {
	for _, n := range transitions[from] {
		if n == to {
			return true
		}
	}

	return false
}

// CheckTransition validates moving s to the target state against the table
// and the target's guards. docs are the documents attached to s.
func CheckTransition(s *Sale, to State, docs []*Document) error {
	if !CanTransition(s.State, to) {
		return &TransitionError{From: s.State, To: to}
	}

	switch to {
	case StateWeighed:
		if !hasDocument(docs, DocumentRomaneo) {
			return &TransitionError{From: s.State, To: to, Guard: GuardRomaneoDocument}
		}
	case StateFinalized:
		if s.Balance().IsPositive() {
			return &TransitionError{From: s.State, To: to, Guard: GuardBalanceSettled}
		}
	}

	return nil
}

// MarkInvoiced records the invoice number. Exempt sales need none.
func MarkInvoiced(s *Sale, number string) error {
	number = strings.TrimSpace(number)

	if number == "" && !s.InvoiceExempt {
		return &ValidationError{Field: "invoice_number", Reason: "required unless the sale is invoice exempt"}
	}

	s.InvoiceNumber = number

	return nil
}

// Invoiced reports whether the billing step is complete.
func (s *Sale) Invoiced() bool {
	return s.InvoiceNumber != "" || s.InvoiceExempt
}
