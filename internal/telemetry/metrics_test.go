package telemetry

import "testing"

func TestInitMetrics(t *testing.T) {
	m, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}

	if m.RequestCounter == nil || m.RequestDuration == nil {
		t.Error("request instruments not initialized")
	}
	if m.TokensUsed == nil || m.IngestDuration == nil || m.ChunksProduced == nil || m.CircuitBreakerState == nil {
		t.Error("ingest instruments not initialized")
	}

	// Records against the default no-op meter must not panic
	m.RecordRequest("POST", "/api/v1/documents", "success", 0.12)
	m.RecordTokensUsed(512, "text-embedding-004")
	m.RecordIngest(3.4, "structure", 17, true)
	m.RecordCircuitBreakerState("gemini", "open")
}

func TestMetricsNilReceiver(t *testing.T) {
	// Components constructed without metrics still record through a nil
	// handle; every method has to tolerate that.
	var m *Metrics
	m.RecordRequest("GET", "/health", "success", 0.01)
	m.RecordTokensUsed(1, "text-embedding-004")
	m.RecordIngest(0.5, "fixed", 3, false)
	m.RecordCircuitBreakerState("docai-provider", "half-open")
}
