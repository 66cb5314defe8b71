package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/giongto35/voice-relay/pkg/config"
	"github.com/giongto35/voice-relay/pkg/logger"
)

func TestHandler(t *testing.T) {
	tests := []struct {
		name   string
		conf   config.Monitoring
		path   string
		status int
	}{
		{name: "metrics", conf: config.Monitoring{MetricEnabled: true}, path: "/metrics", status: http.StatusOK},
		{name: "metrics off", conf: config.Monitoring{}, path: "/metrics", status: http.StatusNotFound},
		{name: "prefixed", conf: config.Monitoring{MetricEnabled: true, URLPrefix: "/relay"}, path: "/relay/metrics", status: http.StatusOK},
		{name: "pprof", conf: config.Monitoring{ProfilingEnabled: true}, path: "/debug/pprof/heap", status: http.StatusOK},
		{name: "pprof off", conf: config.Monitoring{MetricEnabled: true}, path: "/debug/pprof/heap", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(Handler(tt.conf, "", logger.Nop()))
			defer srv.Close()
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("expected %v, got %v", tt.status, resp.StatusCode)
			}
		})
	}
}
