package httputil

import (
	"net/http/httptest"
	"testing"
)

// The batch limiter keys on the value ClientIP returns, so a spoofable
// header must never feed it unless the deployment opted in.
func TestClientIPDefaultsToRemoteAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "plain host:port",
			remoteAddr: "203.0.113.9:55001",
			want:       "203.0.113.9",
		},
		{
			name:       "IPv6 with port",
			remoteAddr: "[2001:db8::7]:443",
			want:       "2001:db8::7",
		},
		{
			name:       "bare host without port",
			remoteAddr: "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name:       "forged headers ignored without proxy trust",
			remoteAddr: "203.0.113.9:55001",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.1",
				"X-Real-IP":       "198.51.100.2",
			},
			want: "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/v1/convert/batch", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, false); got != tt.want {
				t.Errorf("ClientIP(trustProxy=false) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPBehindProxy(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		xri  string
		want string
	}{
		{
			name: "single forwarded hop",
			xff:  "198.51.100.1",
			want: "198.51.100.1",
		},
		{
			name: "chain keeps the originating client",
			xff:  "198.51.100.1, 10.1.0.4, 10.1.0.5",
			want: "198.51.100.1",
		},
		{
			name: "chain with stray whitespace",
			xff:  "  198.51.100.1 ,10.1.0.4",
			want: "198.51.100.1",
		},
		{
			name: "X-Real-IP when no forwarded chain",
			xri:  "198.51.100.2",
			want: "198.51.100.2",
		},
		{
			name: "forwarded chain wins over X-Real-IP",
			xff:  "198.51.100.1",
			xri:  "198.51.100.2",
			want: "198.51.100.1",
		},
		{
			name: "no headers at all falls back to the socket peer",
			want: "10.1.0.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/v1/convert/batch", nil)
			r.RemoteAddr = "10.1.0.4:42133"
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r, true); got != tt.want {
				t.Errorf("ClientIP(trustProxy=true) = %q, want %q", got, tt.want)
			}
		})
	}
}
