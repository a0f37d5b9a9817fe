package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tailored-agentic-units/concierge/memory"
	"github.com/tailored-agentic-units/concierge/provider"
)

// LoadEnv loads environment files into the process environment. Missing
// files are skipped and variables already set are never overwritten, so
// earlier files take precedence over later ones.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. Malformed numeric or
// boolean values are reported together; valid variables are still applied.
func (c *Config) ApplyEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	str("LLM_PROVIDER", &c.Provider)
	c.Provider = strings.ToLower(c.Provider)
	str("MODEL_NAME", &c.Model)
	if v, ok := lookup("MODEL_TEMPERATURE"); ok {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MODEL_TEMPERATURE: %w", err))
		} else {
			c.Temperature = t
		}
	}

	c.providerEnv(provider.OpenAIName, "OPENAI_API_KEY", "OPENAI_BASE_URL")
	c.providerEnv(provider.OllamaName, "", "OLLAMA_BASE_URL")

	str("MEMORY_BACKEND", &c.Memory.Backend)
	str("REDIS_URL", &c.Memory.URL)
	switch c.Memory.Backend {
	case memory.BackendSQLite:
		str("SQLITE_PATH", &c.Memory.Path)
	case memory.BackendFile:
		str("MEMORY_PATH", &c.Memory.Path)
	}
	if v, ok := lookup("SUMMARY_TOKEN_BUDGET"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("SUMMARY_TOKEN_BUDGET: invalid value %q", v))
		} else {
			c.Session.TokenBudget = n
		}
	}

	if v, ok := lookup("GUARDRAIL_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GUARDRAIL_ENABLED: %w", err))
		} else {
			c.Guardrail.Enabled = &b
		}
	}
	str("SYNTHESIZER_MODE", &c.Synth.Mode)

	str("AGENT_PRODUCTS_URL", &c.Agents.ProductsURL)
	str("AGENT_PAGOS_URL", &c.Agents.PaymentsURL)
	str("AGENT_SALUDOS_URL", &c.Agents.GreetingURL)

	str("CHATWOOT_URL", &c.Notify.ChatwootURL)
	str("CHATWOOT_TOKEN", &c.Notify.ChatwootToken)
	str("CHATWOOT_ACCOUNT_ID", &c.Notify.ChatwootAccountID)
	str("NOTIFY_WEBHOOK_URL", &c.Notify.WebhookURL)

	str("HTTP_ADDR", &c.Addr)

	return errors.Join(errs...)
}

func (c *Config) providerEnv(name, keyVar, urlVar string) {
	if c.Providers == nil {
		c.Providers = make(map[string]provider.Config)
	}
	cur, ok := c.Providers[name]
	if !ok {
		cur = provider.Config{Name: name}
	}

	var changed bool
	if keyVar != "" {
		if v, ok := lookup(keyVar); ok {
			cur.APIKey = v
			changed = true
		}
	}
	if v, ok := lookup(urlVar); ok {
		cur.BaseURL = v
		changed = true
	}
	if changed || ok {
		c.Providers[name] = cur
	}
}

// lookup returns a non-blank environment variable, trimmed.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
