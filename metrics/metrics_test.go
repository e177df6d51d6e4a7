package metrics

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/structs"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/scitags/flowd-nl/exchange"
)

type fixedSource exchange.Stats

func (f fixedSource) Stats() exchange.Stats {
	return exchange.Stats(f)
}

var sample = fixedSource{Sent: 3, SentBytes: 60, Processed: 2, Timeouts: 1, Pending: 2}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg, sample); err != nil {
		t.Fatalf("error registering the metrics: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("error gathering metrics: %v", err)
	}

	if len(families) != len(structs.Fields(exchange.Stats{})) {
		t.Errorf("got %d metric families for %d fields", len(families), len(structs.Fields(exchange.Stats{})))
	}

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	want := map[string]float64{
		"netlink_exchange_sent_messages_total": 3,
		"netlink_exchange_sent_bytes_total":    60,
		"netlink_exchange_processed_total":     2,
		"netlink_exchange_timeouts_total":      1,
		"netlink_exchange_pending":             2,
		"netlink_exchange_queued":              0,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s: got %v, want %v", name, got[name], v)
		}
	}
}

func TestServer(t *testing.T) {
	s, err := NewServer(&Config{Log: false}, sample)
	if err != nil {
		t.Fatalf("error creating the server: %v", err)
	}

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("error getting stats: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("error reading stats: %v", err)
	}

	sch, err := jsonschema.NewCompiler().Compile("testdata/stats.schema.json")
	if err != nil {
		t.Fatalf("error compiling the schema: %v", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("error unmarshalling the stats: %v", err)
	}

	if err := sch.Validate(inst); err != nil {
		t.Errorf("error validating the stats: %v", err)
	}

	var stats map[string]float64
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("error decoding stats: %v", err)
	}

	want := map[string]float64{}
	for k, v := range structs.Map(sample.Stats()) {
		want[k] = float64(v.(uint64))
	}
	if !cmp.Equal(stats, want) {
		t.Errorf("stats mismatch: %s", cmp.Diff(want, stats))
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("error getting metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("error reading metrics: %v", err)
	}
	if !strings.Contains(string(body), "netlink_exchange_sent_messages_total 3") {
		t.Errorf("sent messages missing from:\n%s", body)
	}
}
