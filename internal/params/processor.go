package params

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/retrieval"
	"github.com/agentoven/promptplane/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("promptplane/params")

// Config bounds retrieval work per Process call.
type Config struct {
	Timeout     time.Duration // per retrieval method group
	MaxParallel int           // concurrent groups; <= 0 means unbounded
}

// Result is the outcome of one Process call.
type Result struct {
	Values      map[string]any `json:"values"`
	Missing     []string       `json:"missing"`
	Warnings    []string       `json:"warnings"`
	Invocations map[string]int `json:"invocations"`
}

// Processor resolves template placeholders. It holds only immutable
// registries and is safe for concurrent use.
type Processor struct {
	params  *registry.Parameters
	methods *retrieval.Registry
	cfg     Config
}

// NewProcessor creates a processor over the published registries.
func NewProcessor(params *registry.Parameters, methods *retrieval.Registry, cfg Config) *Processor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Processor{params: params, methods: methods, cfg: cfg}
}

// group is every queued parameter routed to one retrieval method.
type group struct {
	method string
	params []models.ParameterDefinition

	// filled by fetch
	resp map[string]any
	err  error
}

// Process resolves every placeholder of template.
//
// required names the parameters whose absence is reported in Missing. A nil
// required set falls back to the Required flags of the parameter registry.
// The returned error is reserved for caller cancellation; degraded retrieval
// only produces warnings.
func (p *Processor) Process(ctx context.Context, template string, payload map[string]any, required []string, rc *retrieval.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "params.Process")
	defer span.End()

	names := ExtractPlaceholders(template)
	span.SetAttributes(attribute.Int("params.placeholders", len(names)))

	isRequired := p.requiredSet(required)
	res := &Result{
		Values:      make(map[string]any),
		Missing:     []string{},
		Warnings:    []string{},
		Invocations: make(map[string]int),
	}
	missing := []string{}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		res.Warnings = append(res.Warnings, msg)
		log.Warn().Str("component", "params").Msg(msg)
	}
	// settle applies the default-or-missing policy to an unresolved parameter.
	settle := func(def models.ParameterDefinition) {
		switch {
		case def.HasDefault:
			res.Values[def.Name] = def.Default
		case isRequired(def.Name):
			missing = append(missing, def.Name)
		}
	}

	groups := make(map[string]*group)
	var order []string
	for _, name := range names {
		if v, ok := payload[name]; ok {
			res.Values[name] = v
			continue
		}
		def, ok := p.params.Get(name)
		if !ok {
			if isRequired(name) {
				missing = append(missing, name)
			} else {
				warn("unknown parameter %q left unsubstituted", name)
			}
			continue
		}
		if def.RetrievalMethod == "" {
			if !def.HasDefault && !isRequired(name) {
				warn("parameter %q has no source and is left unsubstituted", name)
			}
			settle(def)
			continue
		}
		g, ok := groups[def.RetrievalMethod]
		if !ok {
			g = &group{method: def.RetrievalMethod}
			groups[def.RetrievalMethod] = g
			order = append(order, def.RetrievalMethod)
		}
		g.params = append(g.params, def)
	}

	// Precondition check happens before any fetch so skipped groups never
	// consume a parallelism slot.
	var runnable []*group
	for _, m := range order {
		g := groups[m]
		entry, ok := p.methods.Get(m)
		if !ok {
			warn("retrieval method %q is not registered", m)
			settleAll(g, settle)
			continue
		}
		if absent := missingPayload(entry.Definition, rc); len(absent) > 0 {
			warn("retrieval method %q skipped: payload lacks %v", m, absent)
			settleAll(g, settle)
			continue
		}
		runnable = append(runnable, g)
	}

	p.fetchAll(ctx, runnable, rc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, g := range runnable {
		res.Invocations[g.method]++
		if g.err != nil {
			warn("retrieval method %q failed: %v", g.method, g.err)
			settleAll(g, settle)
			continue
		}
		doc, err := newDocument(g.resp)
		if err != nil {
			warn("retrieval method %q returned an unencodable response: %v", g.method, err)
			settleAll(g, settle)
			continue
		}
		for _, def := range g.params {
			if v, ok := doc.get(def.Path()); ok {
				res.Values[def.Name] = v
				continue
			}
			warn("parameter %q: path %q not found in %s response", def.Name, def.Path(), g.method)
			settle(def)
		}
	}

	sort.Strings(missing)
	res.Missing = missing
	span.SetAttributes(
		attribute.Int("params.groups", len(runnable)),
		attribute.Int("params.missing", len(missing)),
		attribute.Int("params.warnings", len(res.Warnings)),
	)
	return res, nil
}

func settleAll(g *group, settle func(models.ParameterDefinition)) {
	for _, def := range g.params {
		settle(def)
	}
}

// fetchAll invokes each group's method exactly once. Groups are isolated:
// every group gets its own timeout, errors and panics stay in the group and
// never cancel siblings.
func (p *Processor) fetchAll(ctx context.Context, groups []*group, rc *retrieval.Context) {
	if len(groups) == 0 {
		return
	}
	var eg errgroup.Group
	if p.cfg.MaxParallel > 0 {
		eg.SetLimit(p.cfg.MaxParallel)
	}
	for _, g := range groups {
		entry, _ := p.methods.Get(g.method)
		eg.Go(func() error {
			g.resp, g.err = p.fetch(ctx, g.method, entry.Method, rc)
			return nil
		})
	}
	_ = eg.Wait()
}

func (p *Processor) fetch(ctx context.Context, name string, m retrieval.Method, rc *retrieval.Context) (resp map[string]any, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "retrieval."+name)
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	type answer struct {
		resp map[string]any
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- answer{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		r, e := m.Fetch(ctx, rc)
		done <- answer{resp: r, err: e}
	}()

	select {
	case a := <-done:
		return a.resp, a.err
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out after %s: %w", p.cfg.Timeout, ctx.Err())
	}
}

func (p *Processor) requiredSet(required []string) func(string) bool {
	if required == nil {
		return func(name string) bool {
			def, ok := p.params.Get(name)
			return ok && def.Required
		}
	}
	set := make(map[string]struct{}, len(required))
	for _, r := range required {
		set[r] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

func missingPayload(def models.RetrievalMethodDefinition, rc *retrieval.Context) []string {
	var absent []string
	for _, key := range def.RequiresPayload {
		if rc == nil || rc.Payload == nil {
			absent = append(absent, key)
			continue
		}
		if v, ok := rc.Payload[key]; !ok || v == nil || v == "" {
			absent = append(absent, key)
		}
	}
	return absent
}
