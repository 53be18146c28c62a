package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	dispatchedRoute       = "/api/task/dispatched"
	dispatchedSpanName    = "api.dispatched_tasks"
	dispatchedEventName   = "tasks.dispatched.request"
	dispatchedEventDomain = "wingsuite"
	dispatchedAttrPrefix  = "wingsuite.tasks."
)

// dispatchMetrics records timings for the dispatched-task listing, the one
// endpoint that fans out over a whole table partition. Log emits a single
// observability event to both logrus and the active span.
type dispatchMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration   time.Duration
	fetchDuration  time.Duration
	encodeDuration time.Duration
	tasksReturned  int
	pages          int
	errorStage     string
}

func newDispatchMetrics(ctx context.Context, logger *log.Logger) (*dispatchMetrics, context.Context) {
	tracer := otel.GetTracerProvider().Tracer("wingsuite-api/api")
	spanCtx, span := tracer.Start(ctx, dispatchedSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &dispatchMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *dispatchMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *dispatchMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *dispatchMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *dispatchMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *dispatchMetrics) SetPages(pages int) {
	if pages < 0 {
		pages = 0
	}
	m.pages = pages
}

func (m *dispatchMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finishes the span and emits the observability event. Must be called
// exactly once per request.
func (m *dispatchMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	totalMS := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":                            dispatchedRoute,
		dispatchedAttrPrefix + "total_ms":       totalMS,
		dispatchedAttrPrefix + "tasks_returned": m.tasksReturned,
		dispatchedAttrPrefix + "pages":          m.pages,
	}
	if m.authDuration > 0 {
		attrs[dispatchedAttrPrefix+"auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		attrs[dispatchedAttrPrefix+"fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.encodeDuration > 0 {
		attrs[dispatchedAttrPrefix+"encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs[dispatchedAttrPrefix+"error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	fields := log.Fields{
		"event.name":      dispatchedEventName,
		"event.domain":    dispatchedEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}

	if m.span != nil {
		spanAttrs := []attribute.KeyValue{
			attribute.String("http.route", dispatchedRoute),
			attribute.Int("http.status_code", status),
		}
		if m.errorStage != "" {
			spanAttrs = append(spanAttrs, attribute.String(dispatchedAttrPrefix+"error_stage", m.errorStage))
		}
		m.span.SetAttributes(spanAttrs...)

		eventAttrs := []attribute.KeyValue{
			attribute.String("event.name", dispatchedEventName),
			attribute.String("event.domain", dispatchedEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
			attribute.Float64(dispatchedAttrPrefix+"total_ms", totalMS),
		}
		if m.errorStage != "" {
			eventAttrs = append(eventAttrs, attribute.String(dispatchedAttrPrefix+"error_stage", m.errorStage))
		}
		if err != nil {
			eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		}
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

		if err != nil || status >= 500 {
			desc := severityText
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}

		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		m.span.End()
	}

	m.logger.WithFields(fields).Info("observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
