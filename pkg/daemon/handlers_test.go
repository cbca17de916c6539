package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/BaisilG/lego-linux-drivers/pkg/config"
	"github.com/BaisilG/lego-linux-drivers/pkg/events"
	"github.com/BaisilG/lego-linux-drivers/pkg/servo"
)

// newTestServer wires the routes against a mock controller reporting
// pulseMs at probe time.
func newTestServer(t *testing.T, pulseMs int) (*gin.Engine, *servo.MockBackend, string) {
	t.Helper()

	conf = config.NewFileFromConfig(&config.RawFileConfig{}, "")
	hub = events.NewEventHub()
	registry = servo.NewRegistry()

	b := servo.NewMockBackend("mock-controller", pulseMs)
	name, _, err := registry.Register(b, "port0")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	return setupRoutes(), b, name
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestColdStartScenario walks the full attribute-surface flow: a servo
// probed unpowered, switched to run, positioned, then inverted.
func TestColdStartScenario(t *testing.T) {
	router, b, name := newTestServer(t, 0)
	base := "/devices/" + name

	if w := doRequest(t, router, "PUT", base+"/command", `"run"`); w.Code != http.StatusCreated {
		t.Fatalf("PUT command run: %d %s", w.Code, w.Body.String())
	}
	if w := doRequest(t, router, "PUT", base+"/position", "50"); w.Code != http.StatusCreated {
		t.Fatalf("PUT position 50: %d %s", w.Code, w.Body.String())
	}
	if w := doRequest(t, router, "PUT", base+"/polarity", `"inverted"`); w.Code != http.StatusCreated {
		t.Fatalf("PUT polarity inverted: %d %s", w.Code, w.Body.String())
	}

	want := []int{1500, 1950, 1050}
	if got := b.SetCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("controller received %v, want %v", got, want)
	}
}

func TestFloatKeepsLogicalPosition(t *testing.T) {
	router, b, name := newTestServer(t, 1500)
	base := "/devices/" + name

	if w := doRequest(t, router, "PUT", base+"/position", "50"); w.Code != http.StatusCreated {
		t.Fatalf("PUT position: %d %s", w.Code, w.Body.String())
	}
	if w := doRequest(t, router, "PUT", base+"/command", `"float"`); w.Code != http.StatusCreated {
		t.Fatalf("PUT command float: %d %s", w.Code, w.Body.String())
	}

	calls := b.SetCalls()
	if calls[len(calls)-1] != 0 {
		t.Fatalf("float did not command pulse 0: %v", calls)
	}

	// The backend now reports 0, so the read falls back to the stored 50.
	w := doRequest(t, router, "GET", base+"/position", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET position: %d", w.Code)
	}
	var got int
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got != 50 {
		t.Errorf("position read %d, want stored 50", got)
	}
}

func TestRejectsBadWrites(t *testing.T) {
	router, _, name := newTestServer(t, 1500)
	base := "/devices/" + name

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "position above range", path: base + "/position", body: "101"},
		{name: "position below range", path: base + "/position", body: "-101"},
		{name: "position not a number", path: base + "/position", body: `"half"`},
		{name: "unknown command token", path: base + "/command", body: `"coast"`},
		{name: "unknown polarity token", path: base + "/polarity", body: `"reverse"`},
		{name: "min pulse out of range", path: base + "/min-pulse-ms", body: "701"},
		{name: "mid pulse out of range", path: base + "/mid-pulse-ms", body: "1299"},
		{name: "max pulse out of range", path: base + "/max-pulse-ms", body: "2701"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doRequest(t, router, "PUT", tt.path, tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", w.Code)
			}
		})
	}

	// Rejected writes must not have moved anything.
	w := doRequest(t, router, "GET", base+"/min-pulse-ms", "")
	var minPulse int
	if err := json.Unmarshal(w.Body.Bytes(), &minPulse); err != nil {
		t.Fatal(err)
	}
	if minPulse != servo.DefaultMinPulseMs {
		t.Errorf("min pulse changed to %d after rejected writes", minPulse)
	}
}

func TestCalibrationWrite(t *testing.T) {
	router, b, name := newTestServer(t, 1500)
	base := "/devices/" + name

	if w := doRequest(t, router, "PUT", base+"/max-pulse-ms", "2700"); w.Code != http.StatusCreated {
		t.Fatalf("PUT max-pulse-ms: %d %s", w.Code, w.Body.String())
	}
	if calls := b.SetCalls(); len(calls) != 0 {
		t.Errorf("calibration write actuated the servo: %v", calls)
	}

	if w := doRequest(t, router, "PUT", base+"/position", "100"); w.Code != http.StatusCreated {
		t.Fatalf("PUT position: %d %s", w.Code, w.Body.String())
	}
	calls := b.SetCalls()
	if len(calls) != 1 || calls[0] != 2700 {
		t.Errorf("controller received %v, want [2700]", calls)
	}
}

func TestRateUnsupported(t *testing.T) {
	router, _, name := newTestServer(t, 1500)
	base := "/devices/" + name

	if w := doRequest(t, router, "GET", base+"/rate", ""); w.Code != http.StatusNotImplemented {
		t.Errorf("GET rate: got %d, want 501", w.Code)
	}
	if w := doRequest(t, router, "PUT", base+"/rate", "1000"); w.Code != http.StatusNotImplemented {
		t.Errorf("PUT rate: got %d, want 501", w.Code)
	}
}

func TestUnknownDevice(t *testing.T) {
	router, _, _ := newTestServer(t, 1500)

	if w := doRequest(t, router, "GET", "/devices/motor9/position", ""); w.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", w.Code)
	}
}

func TestStatus(t *testing.T) {
	router, _, name := newTestServer(t, 1950)

	w := doRequest(t, router, "GET", "/devices/"+name+"/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status: %d %s", w.Code, w.Body.String())
	}

	var got statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Device != name || got.Driver != "mock-controller" || got.PortName != "port0" {
		t.Errorf("identity fields wrong: %+v", got)
	}
	if got.Command != "run" {
		t.Errorf("command = %q, want run (probe saw a driven output)", got.Command)
	}
	if got.Position != 50 {
		t.Errorf("position = %d, want 50 (raw 1950)", got.Position)
	}
	if got.RateMs != nil {
		t.Errorf("rateMs = %v on a rateless controller, want omitted", *got.RateMs)
	}
}

func TestDevicesList(t *testing.T) {
	router, _, name := newTestServer(t, 0)

	w := doRequest(t, router, "GET", "/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET devices: %d", w.Code)
	}
	var got []string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != name {
		t.Errorf("devices = %v, want [%s]", got, name)
	}
}
