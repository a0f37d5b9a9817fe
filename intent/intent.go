// Package intent defines the closed set of conversational intents and the
// model-backed classifier that assigns one to each inbound message.
package intent

import (
	"fmt"
	"strings"
)

// Intent is a routing category for a user message.
type Intent int

const (
	Other Intent = iota
	ProductInquiry
	Order
	Payment
	Delivery
	Sizing
	Tracking
	Greeting
	EscalateToHuman

	// Count is the number of routable intents.
	Count int = iota
)

// Failed tags requests that ended in the engine's error terminal. It is
// never produced by classification and has no handler.
const Failed Intent = -1

var names = [Count]string{
	Other:           "other",
	ProductInquiry:  "product_inquiry",
	Order:           "order",
	Payment:         "payment",
	Delivery:        "delivery",
	Sizing:          "sizing",
	Tracking:        "tracking",
	Greeting:        "greeting",
	EscalateToHuman: "escalate_to_human",
}

// labels are the Spanish classifier outputs, one per intent.
var labels = [Count]string{
	Other:           "otro",
	ProductInquiry:  "consulta_producto",
	Order:           "pedido",
	Payment:         "pagos",
	Delivery:        "entregas",
	Sizing:          "talla",
	Tracking:        "seguimiento",
	Greeting:        "saludo",
	EscalateToHuman: "humano",
}

var lookup = func() map[string]Intent {
	m := map[string]Intent{
		"productos": ProductInquiry,
		"producto":  ProductInquiry,
		"pago":      Payment,
		"entrega":   Delivery,
		"envios":    Delivery,
		"tallas":    Sizing,
		"saludos":   Greeting,
		"human":     EscalateToHuman,
	}
	for i := range Count {
		m[names[i]] = Intent(i)
		m[labels[i]] = Intent(i)
	}
	return m
}()

// All returns every routable intent in declaration order.
func All() []Intent {
	all := make([]Intent, Count)
	for i := range all {
		all[i] = Intent(i)
	}
	return all
}

// Valid reports whether i is a routable intent.
func (i Intent) Valid() bool {
	return i >= 0 && int(i) < Count
}

func (i Intent) String() string {
	if i == Failed {
		return "error"
	}
	if !i.Valid() {
		return fmt.Sprintf("intent(%d)", int(i))
	}
	return names[i]
}

// Label returns the Spanish classifier label for i.
func (i Intent) Label() string {
	if !i.Valid() {
		return i.String()
	}
	return labels[i]
}

// Parse maps raw classifier output to an intent. Surrounding whitespace,
// quotes and punctuation are ignored, as is case. English names, Spanish
// labels and a few common variants are accepted.
func Parse(raw string) (Intent, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, " \t\r\n\"'`*.,;:!¡?¿()[]")
	s = strings.ReplaceAll(s, " ", "_")

	i, ok := lookup[s]
	return i, ok
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unknown intent %q", string(text))
	}
	*i = parsed
	return nil
}
