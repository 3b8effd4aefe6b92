package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/go-dental-backend/internal/config"
)

// keepGlobals restores the OTel globals when the test ends.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func tracing(insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: "dental-backend",
		SampleRatio: 1,
	}
}

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	cfg := tracing(true)
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, "dev")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled tracing must not replace the provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
}

func TestSetupOTel_InstallsProvider(t *testing.T) {
	cases := []struct {
		name     string
		insecure bool
		ctx      func() context.Context
	}{
		{"insecure", true, context.Background},
		{"tls", false, context.Background},
		// The gRPC client connects lazily, so a dead context is fine.
		{"cancelled context", true, func() context.Context {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepGlobals(t)
			shutdown, err := SetupOTel(tc.ctx(), tracing(tc.insecure), "1.4.0",
				AttrClinicTimezone.String("America/Sao_Paulo"))
			if err != nil {
				t.Fatalf("SetupOTel: %v", err)
			}
			if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
				t.Fatalf("provider = %T", otel.GetTracerProvider())
			}

			ctx, span := otel.Tracer("booking").Start(context.Background(), "appointments.create")
			carrier := propagation.MapCarrier{}
			otel.GetTextMapPropagator().Inject(ctx, carrier)
			span.End()
			if carrier.Get("traceparent") == "" {
				t.Fatalf("traceparent not propagated: %v", carrier)
			}

			sctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
			defer cancel()
			_ = shutdown(sctx)
		})
	}
}

func TestSetupOTel_SeamFailuresKeepGlobals(t *testing.T) {
	cases := []struct {
		name      string
		breakSeam func(t *testing.T)
	}{
		{"exporter", func(t *testing.T) {
			orig := newOTLPExporterFn
			t.Cleanup(func() { newOTLPExporterFn = orig })
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("collector refused")
			}
		}},
		{"resource", func(t *testing.T) {
			orig := newServiceResourceFn
			t.Cleanup(func() { newServiceResourceFn = orig })
			newServiceResourceFn = func(context.Context, string, string, ...attribute.KeyValue) (*resource.Resource, error) {
				return nil, errors.New("schema clash")
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepGlobals(t)
			tc.breakSeam(t)
			tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()

			if _, err := SetupOTel(context.Background(), tracing(true), "dev"); err == nil {
				t.Fatalf("expected %s failure to surface", tc.name)
			}
			if otel.GetTracerProvider() != tp || otel.GetTextMapPropagator() != prop {
				t.Fatalf("globals changed after a failed setup")
			}
		})
	}
}

func TestServiceResource_CarriesClinicZone(t *testing.T) {
	res, err := newServiceResourceFn(context.Background(), "clinic", "v1", AttrClinicTimezone.String("America/Sao_Paulo"))
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	got, ok := res.Set().Value(AttrClinicTimezone)
	if !ok || got.AsString() != "America/Sao_Paulo" {
		t.Fatalf("clinic.timezone = %v (present=%v)", got.AsString(), ok)
	}
	if name, _ := res.Set().Value("service.name"); name.AsString() != "clinic" {
		t.Fatalf("service.name = %q", name.AsString())
	}
}
