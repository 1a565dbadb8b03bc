package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrustedRealIP(t *testing.T) {
	trusted := ParseTrustedProxies("10.0.0.0/8, 192.168.1.5, not-an-ip")
	if len(trusted) != 2 {
		t.Fatalf("ParseTrustedProxies() = %v, want 2 entries", trusted)
	}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"trusted x-real-ip", "10.1.2.3:5000", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"trusted forwarded chain", "192.168.1.5:80", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"untrusted peer", "203.0.113.9:443", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:443"},
		{"invalid header", "10.1.2.3:5000", map[string]string{"X-Real-IP": "localhost"}, "10.1.2.3:5000"},
		{"no header", "10.1.2.3:5000", nil, "10.1.2.3:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}
