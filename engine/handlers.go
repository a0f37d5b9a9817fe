package engine

import (
	"strings"

	"github.com/tailored-agentic-units/concierge/handlers"
	"github.com/tailored-agentic-units/concierge/intent"
)

// Sub-agent endpoint paths appended to the configured base URLs.
const (
	ProductsPath = "/products_agent_search"
	PaymentsPath = "/payment_agent"
	GreetingPath = "/greeting_agent"
)

func (e *Engine) initHandlers() error {
	opts := []handlers.RegistryOption{handlers.WithObserver(e.observer)}
	if e.recorder != nil {
		opts = append(opts, handlers.WithRecorder(e.recorder))
	}

	other := handlers.Canned("other", handlers.OtherReply)
	if h, ok := e.handlerOverrides[intent.Other]; ok {
		other = h
	}

	reg, err := handlers.NewRegistry(other, opts...)
	if err != nil {
		return err
	}

	timeout := e.cfg.Agents.Timeout.Std()
	remoteOr := func(name, base, path, reply string) handlers.Handler {
		if base == "" {
			return handlers.Canned(name, reply)
		}
		return handlers.NewRemote(name, strings.TrimRight(base, "/")+path, timeout)
	}

	table := map[intent.Intent]handlers.Handler{
		intent.ProductInquiry:  remoteOr("products", e.cfg.Agents.ProductsURL, ProductsPath, handlers.ProductsReply),
		intent.Payment:         remoteOr("payments", e.cfg.Agents.PaymentsURL, PaymentsPath, handlers.PaymentsReply),
		intent.Greeting:        remoteOr("greeting", e.cfg.Agents.GreetingURL, GreetingPath, handlers.GreetingReply),
		intent.Order:           handlers.Canned("orders", handlers.OrdersReply),
		intent.Tracking:        handlers.Canned("tracking", handlers.TrackingReply),
		intent.EscalateToHuman: handlers.NewEscalation(handlers.HumanReply, handlers.HumanLabel, e.labeler, e.dispatcher),
	}
	for i, h := range e.handlerOverrides {
		table[i] = h
	}

	for i, h := range table {
		if i == intent.Other {
			continue
		}
		if err := reg.Set(i, h); err != nil {
			return err
		}
	}

	e.registry = reg
	return nil
}
