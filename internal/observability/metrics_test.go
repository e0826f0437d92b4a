package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")

	m.RecordLoad("ok")
	m.RecordLoad("ok")
	if got := testutil.ToFloat64(m.LoaderRunsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected 2 loads, got %v", got)
	}

	m.UpdateGallery(true, 3, 2)
	if testutil.ToFloat64(m.MintAllowed) != 1 {
		t.Error("mint_allowed should be 1")
	}
	if testutil.ToFloat64(m.GalleryEntries) != 2 {
		t.Error("gallery_entries should be 2")
	}
	m.UpdateGallery(false, 0, 0)
	if testutil.ToFloat64(m.MintAllowed) != 0 {
		t.Error("mint_allowed should be reset to 0")
	}

	m.RecordRPC("getSlot", 10*time.Millisecond, errors.New("boom"))
	if testutil.ToFloat64(m.RPCCallErrors.WithLabelValues("getSlot")) != 1 {
		t.Error("expected one RPC error")
	}

	m.RecordRefresh("success", time.Second)
	if testutil.ToFloat64(m.LastSuccessfulRefresh) == 0 {
		t.Error("last successful refresh should be set")
	}
}

func TestDefaultMetrics(t *testing.T) {
	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be initialized")
	}
	if Handler() == nil {
		t.Fatal("Handler should not be nil")
	}
}
