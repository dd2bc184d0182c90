package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Exporter es el MeterProvider del proceso. Lee con un ManualReader en
// cada scrape y devuelve el formato de texto de Prometheus.
type Exporter struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

func NewExporter() *Exporter {
	reader := sdkmetric.NewManualReader()
	return &Exporter{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

// Meter devuelve el meter de cuentas registrado en este provider.
func (e *Exporter) Meter() metric.Meter {
	return e.provider.Meter(meterName)
}

// Shutdown cierra el provider; despues de esto Render falla.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

// Handler sirve GET /metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := e.Render(r.Context())
		if err != nil {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})
}

// Render junta los datos actuales y los escribe en formato de exposicion.
// Soporta sumas y gauges; otros agregados se omiten.
func (e *Exporter) Render(ctx context.Context) (string, error) {
	var rm metricdata.ResourceMetrics
	if err := e.reader.Collect(ctx, &rm); err != nil {
		return "", fmt.Errorf("collect metrics: %w", err)
	}

	var b strings.Builder
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				writeFamily(&b, m, sumType(data.IsMonotonic), intPoints(data.DataPoints))
			case metricdata.Sum[float64]:
				writeFamily(&b, m, sumType(data.IsMonotonic), floatPoints(data.DataPoints))
			case metricdata.Gauge[int64]:
				writeFamily(&b, m, "gauge", intPoints(data.DataPoints))
			case metricdata.Gauge[float64]:
				writeFamily(&b, m, "gauge", floatPoints(data.DataPoints))
			}
		}
	}
	return b.String(), nil
}

type sample struct {
	labels string
	value  string
}

func sumType(monotonic bool) string {
	if monotonic {
		return "counter"
	}
	return "gauge"
}

func intPoints(points []metricdata.DataPoint[int64]) []sample {
	out := make([]sample, 0, len(points))
	for _, dp := range points {
		out = append(out, sample{labels: renderLabels(dp.Attributes), value: strconv.FormatInt(dp.Value, 10)})
	}
	return out
}

func floatPoints(points []metricdata.DataPoint[float64]) []sample {
	out := make([]sample, 0, len(points))
	for _, dp := range points {
		out = append(out, sample{labels: renderLabels(dp.Attributes), value: strconv.FormatFloat(dp.Value, 'g', -1, 64)})
	}
	return out
}

func writeFamily(b *strings.Builder, m metricdata.Metrics, kind string, samples []sample) {
	if len(samples) == 0 {
		return
	}
	name := sanitizeName(m.Name)
	sort.Slice(samples, func(i, j int) bool { return samples[i].labels < samples[j].labels })

	if m.Description != "" {
		b.WriteString("# HELP ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(escapeHelp(m.Description))
		b.WriteByte('\n')
	}
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
	for _, s := range samples {
		b.WriteString(name)
		b.WriteString(s.labels)
		b.WriteByte(' ')
		b.WriteString(s.value)
		b.WriteByte('\n')
	}
}

// renderLabels respeta el orden de attribute.Set, que ya viene ordenado por clave.
func renderLabels(set attribute.Set) string {
	if set.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		parts = append(parts, sanitizeName(string(kv.Key))+`="`+escapeLabel(kv.Value.Emit())+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	return strings.ReplaceAll(help, "\n", "\\n")
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return strings.ReplaceAll(v, `"`, `\"`)
}
