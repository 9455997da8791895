package flow

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/cloudengine/pkg/evidence"
)

// Element is a processing step in a pipeline.
type Element interface {
	// DataKey names the slot the element writes its result to.
	DataKey() string

	// Process reads from and writes to data.
	Process(ctx context.Context, data *Data) error
}

// EvidenceConsumer is implemented by elements that declare which evidence
// keys they read.
type EvidenceConsumer interface {
	EvidenceKeyFilter(ctx context.Context) (evidence.KeyFilter, error)
}

// Options controls pipeline behaviour.
type Options struct {
	// SuppressProcessErrors records element errors on the flow data and
	// continues with the next element instead of aborting.
	SuppressProcessErrors bool

	Logger *slog.Logger
}

// Pipeline runs elements in order.
type Pipeline struct {
	elements []Element
	opts     Options
	logger   *slog.Logger
}

// NewPipeline creates a pipeline over the given elements.
func NewPipeline(opts Options, elements ...Element) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		elements: elements,
		opts:     opts,
		logger:   logger.With("component", "flow.pipeline"),
	}
}

// Elements returns the pipeline's elements.
func (p *Pipeline) Elements() []Element {
	return p.elements
}

// CreateData returns flow data for a new unit of work.
func (p *Pipeline) CreateData(ev *evidence.Store) *Data {
	return NewData(ev)
}

// Process runs every element against data. When errors are suppressed the
// returned error is always nil and failures are found through data.Errors().
func (p *Pipeline) Process(ctx context.Context, data *Data) error {
	for _, el := range p.elements {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := el.Process(ctx, data)
		if err == nil {
			continue
		}

		if !p.opts.SuppressProcessErrors {
			return fmt.Errorf("element %q: %w", el.DataKey(), err)
		}

		p.logger.Warn("element failed, continuing",
			"element", el.DataKey(),
			"error", err,
		)
		data.AddError(el.DataKey(), err)
	}
	return nil
}

// EvidenceKeyFilter returns the union of the evidence interests declared by
// the pipeline's elements.
func (p *Pipeline) EvidenceKeyFilter(ctx context.Context) (evidence.KeyFilter, error) {
	filter := evidence.NewKeyFilter()
	for _, el := range p.elements {
		consumer, ok := el.(EvidenceConsumer)
		if !ok {
			continue
		}
		f, err := consumer.EvidenceKeyFilter(ctx)
		if err != nil {
			return evidence.KeyFilter{}, fmt.Errorf("element %q evidence keys: %w", el.DataKey(), err)
		}
		filter = filter.Union(f)
	}
	return filter, nil
}
