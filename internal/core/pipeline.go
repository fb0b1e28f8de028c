package core

import (
	"fmt"
	"sort"
)

// Pipeline holds a collection of processors and manages their execution
type Pipeline struct {
	processors []Processor
}

// NewPipeline creates a pipeline with the given processors
func NewPipeline(processors ...Processor) *Pipeline {
	p := &Pipeline{processors: make([]Processor, 0, len(processors))}
	for _, proc := range processors {
		p.AddProcessor(proc)
	}
	return p
}

// AddProcessor adds a processor and keeps the list ordered by priority.
// Call it during setup only; the pipeline is read concurrently afterwards.
func (p *Pipeline) AddProcessor(processor Processor) {
	p.processors = append(p.processors, processor)
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Priority() < p.processors[j].Priority()
	})
}

// Processors returns the processor names in execution order
func (p *Pipeline) Processors() []string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// ExecuteRequest runs every OnRequest in priority order, threading the body
func (p *Pipeline) ExecuteRequest(ctx *GatewayContext, body []byte) ([]byte, error) {
	result := body
	for _, processor := range p.processors {
		var err error
		result, err = processor.OnRequest(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}
	return result, nil
}

// ExecuteResponse runs every OnResponse in priority order
func (p *Pipeline) ExecuteResponse(ctx *GatewayContext, res *Result) error {
	for _, processor := range p.processors {
		if err := processor.OnResponse(ctx, res); err != nil {
			return fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}
	return nil
}
