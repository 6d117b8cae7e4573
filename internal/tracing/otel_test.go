package tracing

import (
	"context"
	"testing"
)

func TestSetup_EmptyEndpoint(t *testing.T) {
	if _, err := Setup(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestSetup_UnknownProtocol(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Endpoint: "localhost:4317", Protocol: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown protocol")
	}
}

func TestSetup_HTTPExporterShutdown(t *testing.T) {
	// Exporters connect lazily, so setup succeeds without a collector.
	shutdown, err := Setup(context.Background(), Config{Endpoint: "127.0.0.1:4318", Protocol: "http", Insecure: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestProtocolName(t *testing.T) {
	if got := protocolName(""); got != "grpc" {
		t.Errorf("protocolName(\"\") = %q", got)
	}
	if got := protocolName("http"); got != "http" {
		t.Errorf("protocolName(http) = %q", got)
	}
}
