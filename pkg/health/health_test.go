package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerAggregatesWorstStatus(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		register func(c *Checker)
		want     Status
		wantCode int
	}{
		{
			name: "all up",
			register: func(c *Checker) {
				c.Register("postgres", Ping(ok, true))
				c.Register("redis", Ping(ok, false))
			},
			want:     StatusUp,
			wantCode: http.StatusOK,
		},
		{
			name: "optional dependency down",
			register: func(c *Checker) {
				c.Register("postgres", Ping(ok, true))
				c.Register("redis", Ping(down, false))
			},
			want:     StatusDegraded,
			wantCode: http.StatusOK,
		},
		{
			name: "critical dependency down",
			register: func(c *Checker) {
				c.Register("postgres", Ping(down, true))
				c.Register("redis", Ping(down, false))
			},
			want:     StatusDown,
			wantCode: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			tt.register(c)
			assert.Equal(t, tt.want, c.Run(context.Background()).Status)

			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
