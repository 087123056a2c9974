package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nav/navframe/geodesy"
	"github.com/nav/navframe/internal/batch"
	"github.com/nav/navframe/internal/httputil"
	"github.com/nav/navframe/internal/metrics"
)

// maxBodyBytes bounds request bodies; batch requests dominate and 8 MiB
// holds well over the point budget.
const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and decodes the request body into dst, answering 400
// on malformed input. Returns false when the request was already handled.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// ellipsoidFrom resolves an optional ellipsoid name; empty means WGS84.
func ellipsoidFrom(name string) (geodesy.Ellipsoid, error) {
	if name == "" {
		return geodesy.WGS84, nil
	}
	ell, ok := geodesy.ByName(name)
	if !ok {
		return geodesy.Ellipsoid{}, fmt.Errorf("unknown ellipsoid %q", name)
	}
	return ell, nil
}

// conversionStatus maps conversion errors to HTTP status codes.
func conversionStatus(err error) int {
	switch {
	case errors.Is(err, geodesy.ErrDegenerateGeometry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, geodesy.ErrInvalidParameter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func ellipsoidsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ellipsoids": []string{"wgs84", "grs80"},
			"default":    "wgs84",
		})
	}
}

type llhConvertRequest struct {
	ECEF      *[3]float64 `json:"ecef"`
	Ellipsoid string      `json:"ellipsoid,omitempty"`
}

// convertLLHHandler converts an ECEF position to geodetic coordinates.
func convertLLHHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req llhConvertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ECEF == nil {
			writeError(w, http.StatusBadRequest, "missing ecef field")
			return
		}
		ell, err := ellipsoidFrom(req.Ellipsoid)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		llh, err := geodesy.LLHFromECEF(geodesy.ECEF{X: req.ECEF[0], Y: req.ECEF[1], Z: req.ECEF[2]}, ell)
		if err != nil {
			metrics.ObserveConversionError("llh")
			writeError(w, conversionStatus(err), err.Error())
			return
		}

		metrics.ObserveConversion("llh")
		writeJSON(w, http.StatusOK, map[string]any{
			"llh": [3]float64{llh.Lat, llh.Lon, llh.Height},
		})
	}
}

type ecefConvertRequest struct {
	LLH       *[3]float64 `json:"llh"`
	Ellipsoid string      `json:"ellipsoid,omitempty"`
}

// convertECEFHandler converts geodetic coordinates to an ECEF position.
func convertECEFHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ecefConvertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.LLH == nil {
			writeError(w, http.StatusBadRequest, "missing llh field")
			return
		}
		ell, err := ellipsoidFrom(req.Ellipsoid)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		p, err := geodesy.ECEFFromLLH(geodesy.LLH{Lat: req.LLH[0], Lon: req.LLH[1], Height: req.LLH[2]}, ell)
		if err != nil {
			metrics.ObserveConversionError("ecef")
			writeError(w, conversionStatus(err), err.Error())
			return
		}

		metrics.ObserveConversion("ecef")
		writeJSON(w, http.StatusOK, map[string]any{
			"ecef": [3]float64{p.X, p.Y, p.Z},
		})
	}
}

type nedConvertRequest struct {
	ECEF      *[3]float64 `json:"ecef"`
	NED       *[3]float64 `json:"ned"`
	RefLLH    *[3]float64 `json:"ref_llh"`
	Ellipsoid string      `json:"ellipsoid,omitempty"`
}

// convertNEDHandler converts between ECEF and the local NED frame of a
// reference point. Exactly one of ecef or ned must be present; the other
// direction is returned.
func convertNEDHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nedConvertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.RefLLH == nil {
			writeError(w, http.StatusBadRequest, "missing ref_llh field")
			return
		}
		if (req.ECEF == nil) == (req.NED == nil) {
			writeError(w, http.StatusBadRequest, "exactly one of ecef or ned must be set")
			return
		}
		ell, err := ellipsoidFrom(req.Ellipsoid)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ref := geodesy.LLH{Lat: req.RefLLH[0], Lon: req.RefLLH[1], Height: req.RefLLH[2]}

		if req.ECEF != nil {
			ned, err := geodesy.NEDFromECEF(geodesy.ECEF{X: req.ECEF[0], Y: req.ECEF[1], Z: req.ECEF[2]}, ref, ell)
			if err != nil {
				metrics.ObserveConversionError("ned")
				writeError(w, conversionStatus(err), err.Error())
				return
			}
			metrics.ObserveConversion("ned")
			writeJSON(w, http.StatusOK, map[string]any{
				"ned": [3]float64{ned.North, ned.East, ned.Down},
			})
			return
		}

		p, err := geodesy.ECEFFromNED(geodesy.NED{North: req.NED[0], East: req.NED[1], Down: req.NED[2]}, ref, ell)
		if err != nil {
			metrics.ObserveConversionError("ned")
			writeError(w, conversionStatus(err), err.Error())
			return
		}
		metrics.ObserveConversion("ned")
		writeJSON(w, http.StatusOK, map[string]any{
			"ecef": [3]float64{p.X, p.Y, p.Z},
		})
	}
}

type azelConvertRequest struct {
	ObserverLLH *[3]float64 `json:"observer_llh"`
	TargetECEF  *[3]float64 `json:"target_ecef"`
	Ellipsoid   string      `json:"ellipsoid,omitempty"`
}

// convertAzElHandler computes look angles from an observer to a target.
// Responds 422 when the target coincides with the observer.
func convertAzElHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req azelConvertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ObserverLLH == nil || req.TargetECEF == nil {
			writeError(w, http.StatusBadRequest, "missing observer_llh or target_ecef field")
			return
		}
		ell, err := ellipsoidFrom(req.Ellipsoid)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		observer := geodesy.LLH{Lat: req.ObserverLLH[0], Lon: req.ObserverLLH[1], Height: req.ObserverLLH[2]}
		target := geodesy.ECEF{X: req.TargetECEF[0], Y: req.TargetECEF[1], Z: req.TargetECEF[2]}

		azel, err := geodesy.AzElFromECEF(observer, target, ell)
		if err != nil {
			metrics.ObserveConversionError("azel")
			writeError(w, conversionStatus(err), err.Error())
			return
		}

		metrics.ObserveConversion("azel")
		writeJSON(w, http.StatusOK, map[string]any{
			"azimuth_rad":   azel.Azimuth,
			"elevation_rad": azel.Elevation,
		})
	}
}

type batchConvertRequest struct {
	Points    [][3]float64 `json:"points"`
	RefLLH    *[3]float64  `json:"ref_llh,omitempty"`
	Ellipsoid string       `json:"ellipsoid,omitempty"`
}

type batchResult struct {
	Index int         `json:"index"`
	LLH   [3]float64  `json:"llh"`
	NED   *[3]float64 `json:"ned,omitempty"`
	AzEl  *azelAngles `json:"azel,omitempty"`
}

type azelAngles struct {
	AzimuthRad   float64 `json:"azimuth_rad"`
	ElevationRad float64 `json:"elevation_rad"`
}

// convertBatchHandler converts many ECEF points in one request on the
// worker pool. The point budget rejects oversized requests up front and
// a per-IP limiter keeps one client from monopolizing the pool.
func convertBatchHandler(logger *slog.Logger, pool *batch.Pool, cfg Config) http.HandlerFunc {
	limiter := newBatchLimiter(cfg.MaxBatchPerIP)

	return func(w http.ResponseWriter, r *http.Request) {
		var req batchConvertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.Points) == 0 {
			writeError(w, http.StatusBadRequest, "missing points field")
			return
		}
		if len(req.Points) > cfg.MaxBatchPoints {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "too many points in one batch",
				"max_points": cfg.MaxBatchPoints,
			})
			return
		}
		ell, err := ellipsoidFrom(req.Ellipsoid)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ip := httputil.ClientIP(r, cfg.TrustProxy)
		if !limiter.acquire(ip) {
			writeError(w, http.StatusTooManyRequests, "too many concurrent batch requests")
			return
		}
		defer limiter.release(ip)

		var ref *geodesy.LLH
		if req.RefLLH != nil {
			ref = &geodesy.LLH{Lat: req.RefLLH[0], Lon: req.RefLLH[1], Height: req.RefLLH[2]}
		}

		points := make([]geodesy.ECEF, len(req.Points))
		for i, p := range req.Points {
			points[i] = geodesy.ECEF{X: p[0], Y: p[1], Z: p[2]}
		}

		metrics.ObserveBatchSize(len(points))
		results, ok, failed := pool.ConvertBatch(r.Context(), points, ref, ell)

		out := make([]batchResult, len(results))
		for i, res := range results {
			br := batchResult{
				Index: res.Index,
				LLH:   [3]float64{res.LLH.Lat, res.LLH.Lon, res.LLH.Height},
			}
			if res.NED != nil {
				br.NED = &[3]float64{res.NED.North, res.NED.East, res.NED.Down}
			}
			if res.AzEl != nil {
				br.AzEl = &azelAngles{AzimuthRad: res.AzEl.Azimuth, ElevationRad: res.AzEl.Elevation}
			}
			out[i] = br
		}

		metrics.ObserveConversion("batch")
		if failed > 0 {
			logger.Warn("batch conversion completed with failures", "ok", ok, "failed", failed)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"count":   ok,
			"errors":  failed,
			"results": out,
		})
	}
}
