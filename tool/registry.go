// Package tool implements the function registry and the WHMCS billing
// functions exposed to the assistant as tools. The registry is an explicit
// instance passed by reference to the orchestrator and the HTTP layer; it is
// populated once at startup and read-only afterwards.
package tool

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/invopop/jsonschema"
	"github.com/samber/lo"

	"github.com/atendai/atendai/internal/mylog"
)

type (
	Function interface {
		Name() string
		Description() string
		Parameters() json.RawMessage
		Execute(ctx context.Context, args json.RawMessage, cc CallContext) Result
	}

	// Definition is the tool-schema export consumed by the assistant
	// service and by GET /functions.
	Definition struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	}

	Stats struct {
		Executions int64 `json:"executions"`
		Failures   int64 `json:"failures"`
	}

	registered struct {
		fn         Function
		executions atomic.Int64
		failures   atomic.Int64
	}

	Registry struct {
		logger *mylog.Logger
		byName map[string]*registered
		order  []string
	}
)

func NewRegistry(logger *mylog.Logger) *Registry {
	return &Registry{
		logger: logger,
		byName: make(map[string]*registered),
	}
}

func (r *Registry) Register(fn Function) {
	r.logger.Info("registering function", "name", fn.Name())
	if _, ok := r.byName[fn.Name()]; !ok {
		r.order = append(r.order, fn.Name())
	}
	r.byName[fn.Name()] = &registered{fn: fn}
}

// Execute dispatches a tool call by name. It never panics past this
// boundary: unknown names, decode failures and panicking handlers all
// become failed Results so one bad handler cannot fail the run.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, cc CallContext) (result Result) {
	reg, ok := r.byName[name]
	if !ok {
		r.logger.Warn("unknown function requested", "name", name, "request_id", cc.RequestID)
		return Fail("função desconhecida: " + name)
	}

	reg.executions.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("function panicked", "name", name, "panic", rec, "request_id", cc.RequestID)
			result = FailErr("erro interno ao executar a função", "panic in function "+name)
		}
		if !result.Success {
			reg.failures.Add(1)
		}
		r.logger.Info("function executed", "name", name, "success", result.Success, "request_id", cc.RequestID)
	}()

	return reg.fn.Execute(ctx, args, cc)
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Definitions() []Definition {
	return lo.Map(r.order, func(name string, _ int) Definition {
		fn := r.byName[name].fn
		return Definition{
			Name:        fn.Name(),
			Description: fn.Description(),
			Parameters:  fn.Parameters(),
		}
	})
}

func (r *Registry) Stats() map[string]Stats {
	stats := make(map[string]Stats, len(r.byName))
	for name, reg := range r.byName {
		stats[name] = Stats{
			Executions: reg.executions.Load(),
			Failures:   reg.failures.Load(),
		}
	}
	return stats
}

// HealthCheck verifies every registered function exposes a usable name,
// description and parameter schema.
func (r *Registry) HealthCheck() error {
	for name, reg := range r.byName {
		if reg.fn.Name() == "" || reg.fn.Description() == "" {
			return errEmptyMetadata(name)
		}
		if len(reg.fn.Parameters()) == 0 {
			return errEmptyMetadata(name)
		}
	}
	return nil
}

// reflectSchema builds the JSON-schema parameter spec off the function's
// argument struct tags.
func reflectSchema(v any) json.RawMessage {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		// Schemas come from static structs; failing to marshal one is a
		// programming error caught by HealthCheck at startup.
		return nil
	}
	return raw
}
