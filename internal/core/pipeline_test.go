package core

import (
	"context"
	"errors"
	"testing"

	"meshgate/internal/core/engine"
)

type recordingProcessor struct {
	name     string
	priority int
	order    *[]string
	suffix   string
	err      error
}

func (r *recordingProcessor) Name() string  { return r.name }
func (r *recordingProcessor) Priority() int { return r.priority }

func (r *recordingProcessor) OnRequest(ctx *GatewayContext, body []byte) ([]byte, error) {
	*r.order = append(*r.order, r.name)
	if r.err != nil {
		return nil, r.err
	}
	return append(append([]byte{}, body...), r.suffix...), nil
}

func (r *recordingProcessor) OnResponse(ctx *GatewayContext, res *Result) error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestPipelineRunsInPriorityOrder(t *testing.T) {
	var order []string
	p := NewPipeline(
		&recordingProcessor{name: "late", priority: 50, order: &order, suffix: "c"},
		&recordingProcessor{name: "first", priority: -100, order: &order, suffix: "a"},
		&recordingProcessor{name: "middle", priority: 10, order: &order, suffix: "b"},
	)

	ctx := NewGatewayContext(context.Background(), nil)
	out, err := p.ExecuteRequest(ctx, []byte(">"))
	if err != nil {
		t.Fatalf("ExecuteRequest failed: %v", err)
	}
	if string(out) != ">abc" {
		t.Errorf("Expected body '>abc', got '%s'", out)
	}

	want := []string{"first", "middle", "late"}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("Expected processor %d to be %s, got %s", i, name, order[i])
		}
	}
	if got := p.Processors(); len(got) != 3 || got[0] != "first" {
		t.Errorf("Unexpected processor list: %v", got)
	}
}

func TestPipelineStopsOnError(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	p := NewPipeline(
		&recordingProcessor{name: "a", priority: 1, order: &order},
		&recordingProcessor{name: "b", priority: 2, order: &order, err: boom},
		&recordingProcessor{name: "c", priority: 3, order: &order},
	)

	ctx := NewGatewayContext(context.Background(), nil)
	if _, err := p.ExecuteRequest(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if len(order) != 2 {
		t.Errorf("Expected 2 processors to run, got %v", order)
	}

	order = nil
	if err := p.ExecuteResponse(ctx, &Result{}); !errors.Is(err, boom) {
		t.Fatalf("Expected boom from response, got %v", err)
	}
}

func TestGatewayContextWithContext(t *testing.T) {
	ctx := NewGatewayContext(nil, nil)
	ctx.RequestID = "req-1"
	ctx.Route = &engine.RouteConfig{Type: engine.RouteTypeREST}
	ctx.Call = &Call{RouteKey: "v1/orders"}

	derived, cancel := context.WithCancel(context.Background())
	child := ctx.WithContext(derived)
	cancel()

	if child.Err() == nil {
		t.Error("Expected derived context to be cancelled")
	}
	if ctx.Err() != nil {
		t.Error("Parent context must not be cancelled")
	}
	if child.RequestID != "req-1" || child.RouteType() != engine.RouteTypeREST {
		t.Errorf("Request state not carried over: %+v", child)
	}
	if child.Call != ctx.Call {
		t.Error("Expected parsed call to be carried over")
	}

	child.RouteKey = "v2/other"
	if ctx.RouteKey == "v2/other" {
		t.Error("Child state leaked into parent")
	}
}
