// Package telemetry wraps a multi-step operation in otel spans: one root span
// carrying the planned step list and one child span per executed step.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName    = "edgecore"
	PlanEventName = "edgecore.plan"
	PlanStepsKey  = "edgecore.plan.steps"
	StepResultKey = "edgecore.step.result"
	StepDetailKey = "edgecore.step.detail"
	defaultOpName = "operation"
)

// Tracer returns the tracer registered with the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// Begin starts the root span for operation and records the planned steps.
func Begin(ctx context.Context, tracer trace.Tracer, operation string, steps []string) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("begin operation: tracer is required")
	}
	if err := validateSteps(steps); err != nil {
		return nil, fmt.Errorf("begin operation: %w", err)
	}

	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = defaultOpName
	}

	planJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("begin operation: marshal steps: %w", err)
	}

	spanCtx, span := tracer.Start(ctx, operation)
	span.AddEvent(PlanEventName, trace.WithAttributes(
		attribute.String(PlanStepsKey, string(planJSON)),
	))
	return &Operation{ctx: spanCtx, tracer: tracer, span: span}, nil
}

func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// Step is one executing step of an Operation.
type Step struct {
	span trace.Span
}

// StartStep opens a child span. A nil Operation yields a no-op step so
// callers can run without tracing.
func (o *Operation) StartStep(ctx context.Context, id string) (context.Context, *Step) {
	if ctx == nil {
		ctx = o.Context()
	}
	if o == nil || o.tracer == nil {
		return ctx, &Step{}
	}
	stepCtx, span := o.tracer.Start(ctx, strings.TrimSpace(id))
	return stepCtx, &Step{span: span}
}

// Finish ends the step span. result is recorded as an attribute; a non-nil
// err marks the span as failed only when failed is true, so soft failures
// stay visible without turning the trace red.
func (s *Step) Finish(result, detail string, err error, failed bool) {
	if s == nil || s.span == nil {
		return
	}
	s.span.SetAttributes(attribute.String(StepResultKey, result))
	if detail != "" {
		s.span.SetAttributes(attribute.String(StepDetailKey, detail))
	}
	if err != nil {
		s.span.RecordError(err)
		if failed {
			s.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		}
	}
	s.span.End()
}

// RunStep runs fn inside a step span and marks the span failed on error.
func (o *Operation) RunStep(ctx context.Context, id string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("run step: step id is required")
	}
	stepCtx, step := o.StartStep(ctx, id)
	err := fn(stepCtx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	step.Finish(result, "", err, err != nil)
	return err
}

func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}

func validateSteps(steps []string) error {
	seen := make(map[string]struct{}, len(steps))
	for i, step := range steps {
		id := strings.TrimSpace(step)
		if id == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate step id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
