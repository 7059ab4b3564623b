package observability

import "testing"

func TestSignalURL(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name     string
		endpoint string
		path     string
		want     string
		wantErr  bool
	}{
		{name: "no path appends signal", endpoint: "https://collector:4318", path: metricsPath, want: "https://collector:4318/v1/metrics"},
		{name: "http scheme preserved", endpoint: "http://localhost:4318", path: tracesPath, want: "http://localhost:4318/v1/traces"},
		{name: "prefix kept", endpoint: "https://example.com/otlp", path: metricsPath, want: "https://example.com/otlp/v1/metrics"},
		{name: "trailing slash ignored", endpoint: "https://example.com/otlp/", path: metricsPath, want: "https://example.com/otlp/v1/metrics"},
		{name: "signal already present", endpoint: "https://example.com/otlp/v1/metrics", path: metricsPath, want: "https://example.com/otlp/v1/metrics"},
		{name: "query string preserved", endpoint: "https://example.com/otlp?token=abc", path: tracesPath, want: "https://example.com/otlp/v1/traces?token=abc"},
		{name: "empty endpoint", endpoint: "", path: metricsPath, wantErr: true},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := signalURL(tt.endpoint, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGRPCTarget(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		endpoint string
		target   string
		insecure bool
		wantErr  bool
	}{
		{endpoint: "collector:4317", target: "collector:4317", insecure: true},
		{endpoint: "http://collector:4317", target: "collector:4317", insecure: true},
		{endpoint: "grpcs://collector:4317", target: "collector:4317"},
		{endpoint: "https://collector:4317", target: "collector:4317"},
		{endpoint: "ftp://collector:4317", wantErr: true},
		{endpoint: "collector", wantErr: true},
		{endpoint: " ", wantErr: true},
	}

	for _, tt := range testcases {
		target, insecure, err := grpcTarget(tt.endpoint)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.endpoint)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.endpoint, err)
			continue
		}
		if target != tt.target || insecure != tt.insecure {
			t.Errorf("%q: got (%q, %v), want (%q, %v)", tt.endpoint, target, insecure, tt.target, tt.insecure)
		}
	}
}
