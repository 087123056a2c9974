package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nav/navframe/geodesy"
	"github.com/nav/navframe/internal/auth"
	"github.com/nav/navframe/internal/batch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testHandler(t *testing.T, authCfg auth.Config) http.Handler {
	t.Helper()
	pool := batch.NewPool(2, testLogger())
	srv := NewServer(":0", testLogger(), authCfg, pool, Config{
		MaxBatchPoints: 100,
		MaxBatchPerIP:  2,
	})
	return srv.HTTPServer().Handler
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestConvertLLH(t *testing.T) {
	h := testHandler(t, auth.Config{})

	// Equator at the reference meridian, on the surface.
	w := postJSON(t, h, "/api/v1/convert/llh", map[string]any{
		"ecef": []float64{geodesy.WGS84.A, 0, 0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		LLH [3]float64 `json:"llh"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if math.Abs(resp.LLH[0]) > 1e-9 || math.Abs(resp.LLH[1]) > 1e-9 || math.Abs(resp.LLH[2]) > 1e-6 {
		t.Errorf("llh = %v, want ~(0, 0, 0)", resp.LLH)
	}
}

func TestConvertECEF_RoundTrip(t *testing.T) {
	h := testHandler(t, auth.Config{})
	lat, lon, height := 45*math.Pi/180, 9*math.Pi/180, 312.0

	w := postJSON(t, h, "/api/v1/convert/ecef", map[string]any{
		"llh": []float64{lat, lon, height},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var ecefResp struct {
		ECEF [3]float64 `json:"ecef"`
	}
	if err := json.NewDecoder(w.Body).Decode(&ecefResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	w = postJSON(t, h, "/api/v1/convert/llh", map[string]any{
		"ecef": ecefResp.ECEF[:],
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var llhResp struct {
		LLH [3]float64 `json:"llh"`
	}
	if err := json.NewDecoder(w.Body).Decode(&llhResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if math.Abs(llhResp.LLH[0]-lat) > 1e-9 || math.Abs(llhResp.LLH[1]-lon) > 1e-9 || math.Abs(llhResp.LLH[2]-height) > 1e-6 {
		t.Errorf("round trip llh = %v, want (%.9f, %.9f, %.3f)", llhResp.LLH, lat, lon, height)
	}
}

func TestConvertNED_Directions(t *testing.T) {
	h := testHandler(t, auth.Config{})
	ref := geodesy.LLH{Lat: 45 * math.Pi / 180, Lon: 9 * math.Pi / 180, Height: 200}
	above, err := geodesy.ECEFFromLLH(geodesy.LLH{Lat: ref.Lat, Lon: ref.Lon, Height: ref.Height + 1000}, geodesy.WGS84)
	if err != nil {
		t.Fatalf("ECEFFromLLH: %v", err)
	}

	w := postJSON(t, h, "/api/v1/convert/ned", map[string]any{
		"ecef":    []float64{above.X, above.Y, above.Z},
		"ref_llh": []float64{ref.Lat, ref.Lon, ref.Height},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		NED [3]float64 `json:"ned"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if math.Abs(resp.NED[2]+1000) > 1e-3 {
		t.Errorf("down = %.6f, want ~-1000 for a point directly above", resp.NED[2])
	}
}

func TestConvertNED_RequiresExactlyOneInput(t *testing.T) {
	h := testHandler(t, auth.Config{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "both ecef and ned",
			body: map[string]any{
				"ecef":    []float64{1, 2, 3},
				"ned":     []float64{1, 2, 3},
				"ref_llh": []float64{0, 0, 0},
			},
		},
		{
			name: "neither ecef nor ned",
			body: map[string]any{
				"ref_llh": []float64{0, 0, 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h, "/api/v1/convert/ned", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestConvertAzEl_Degenerate(t *testing.T) {
	h := testHandler(t, auth.Config{})
	observer := geodesy.LLH{Lat: 45 * math.Pi / 180, Lon: 9 * math.Pi / 180, Height: 200}
	target, err := geodesy.ECEFFromLLH(observer, geodesy.WGS84)
	if err != nil {
		t.Fatalf("ECEFFromLLH: %v", err)
	}

	w := postJSON(t, h, "/api/v1/convert/azel", map[string]any{
		"observer_llh": []float64{observer.Lat, observer.Lon, observer.Height},
		"target_ecef":  []float64{target.X, target.Y, target.Z},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 for coincident target; body: %s", w.Code, w.Body.String())
	}
}

func TestConvertBadRequests(t *testing.T) {
	h := testHandler(t, auth.Config{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed JSON", "/api/v1/convert/llh", "{not json"},
		{"missing ecef", "/api/v1/convert/llh", "{}"},
		{"unknown field", "/api/v1/convert/llh", `{"ecef":[1,2,3],"frame":"itrf"}`},
		{"unknown ellipsoid", "/api/v1/convert/llh", `{"ecef":[6378137,0,0],"ellipsoid":"bessel"}`},
		{"out-of-range number", "/api/v1/convert/ecef", `{"llh":[1e999,0,0]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body: %s", w.Code, w.Body.String())
			}
			var resp map[string]any
			json.NewDecoder(w.Body).Decode(&resp)
			if resp["error"] == nil {
				t.Error("expected error field in response")
			}
		})
	}
}

func TestConvertBatch(t *testing.T) {
	h := testHandler(t, auth.Config{})
	p1, _ := geodesy.ECEFFromLLH(geodesy.LLH{Lat: 0.1, Lon: 0.2, Height: 100}, geodesy.WGS84)
	p2, _ := geodesy.ECEFFromLLH(geodesy.LLH{Lat: -0.3, Lon: 1.1, Height: 5000}, geodesy.WGS84)

	w := postJSON(t, h, "/api/v1/convert/batch", map[string]any{
		"points":  [][]float64{{p1.X, p1.Y, p1.Z}, {p2.X, p2.Y, p2.Z}},
		"ref_llh": []float64{0.1, 0.2, 0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count   int `json:"count"`
		Errors  int `json:"errors"`
		Results []struct {
			Index int         `json:"index"`
			LLH   [3]float64  `json:"llh"`
			NED   *[3]float64 `json:"ned"`
		} `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || resp.Errors != 0 || len(resp.Results) != 2 {
		t.Fatalf("count=%d errors=%d len=%d, want 2/0/2", resp.Count, resp.Errors, len(resp.Results))
	}
	if resp.Results[0].NED == nil {
		t.Error("expected NED in batch results when ref_llh is set")
	}
	if math.Abs(resp.Results[0].LLH[0]-0.1) > 1e-9 {
		t.Errorf("results[0] lat = %.9f rad, want 0.1", resp.Results[0].LLH[0])
	}
}

func TestConvertBatch_PointBudget(t *testing.T) {
	h := testHandler(t, auth.Config{})

	points := make([][]float64, 101) // budget is 100 in testHandler
	for i := range points {
		points[i] = []float64{geodesy.WGS84.A, 0, 0}
	}

	w := postJSON(t, h, "/api/v1/convert/batch", map[string]any{"points": points})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["max_points"] == nil {
		t.Error("expected max_points field in response")
	}
}

func TestAuthProtectsConversionEndpoints(t *testing.T) {
	h := testHandler(t, auth.Config{Enabled: true, Token: "secret"})

	// No token: conversion endpoints are protected.
	w := postJSON(t, h, "/api/v1/convert/llh", map[string]any{
		"ecef": []float64{geodesy.WGS84.A, 0, 0},
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	// Probes stay public.
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", rec.Code)
	}

	// Correct token passes.
	raw, _ := json.Marshal(map[string]any{"ecef": []float64{geodesy.WGS84.A, 0, 0}})
	req = httptest.NewRequest("POST", "/api/v1/convert/llh", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	h := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest("GET", "/api/v1/ellipsoids", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("request log is not JSON: %v; raw: %s", err, buf.String())
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("logged status = %v, want %d", entry["status"], http.StatusTeapot)
	}
	if entry["bytes"] != float64(len("short and stout")) {
		t.Errorf("logged bytes = %v, want %d", entry["bytes"], len("short and stout"))
	}

	// Probe paths stay below the Info threshold.
	buf.Reset()
	req = httptest.NewRequest("GET", "/healthz", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if buf.Len() != 0 {
		t.Errorf("probe request logged at Info: %s", buf.String())
	}
}
