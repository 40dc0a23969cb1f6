package health

import (
	"context"
	"errors"
	"testing"
)

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockIndexChecker struct {
	exists bool
	err    error
}

func (m *mockIndexChecker) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.err
}

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		svc := New(&mockDBPinger{}, &mockIndexChecker{exists: true}, &mockEmbeddingChecker{})
		r := svc.Check(context.Background())

		if r.Status != Healthy {
			t.Errorf("status = %q, want %q", r.Status, Healthy)
		}
		for _, component := range []string{"database", "index", "embedding"} {
			if r.Checks[component] != CheckOK {
				t.Errorf("%s = %q, want %q", component, r.Checks[component], CheckOK)
			}
		}
	})

	t.Run("database down is unhealthy", func(t *testing.T) {
		svc := New(&mockDBPinger{err: errors.New("conn refused")},
			&mockIndexChecker{exists: true}, &mockEmbeddingChecker{})
		r := svc.Check(context.Background())

		if r.Status != Unhealthy {
			t.Errorf("status = %q, want %q", r.Status, Unhealthy)
		}
		if r.Checks["database"] != CheckError {
			t.Errorf("database = %q, want %q", r.Checks["database"], CheckError)
		}
	})

	t.Run("missing index is degraded", func(t *testing.T) {
		svc := New(&mockDBPinger{}, &mockIndexChecker{exists: false}, &mockEmbeddingChecker{})
		r := svc.Check(context.Background())

		if r.Status != Degraded {
			t.Errorf("status = %q, want %q", r.Status, Degraded)
		}
		if r.Checks["index"] != CheckError {
			t.Errorf("index = %q, want %q", r.Checks["index"], CheckError)
		}
	})

	t.Run("index check error is degraded", func(t *testing.T) {
		svc := New(&mockDBPinger{}, &mockIndexChecker{err: errors.New("timeout")}, nil)
		r := svc.Check(context.Background())

		if r.Status != Degraded {
			t.Errorf("status = %q, want %q", r.Status, Degraded)
		}
	})

	t.Run("embedding provider down is degraded", func(t *testing.T) {
		svc := New(&mockDBPinger{}, &mockIndexChecker{exists: true},
			&mockEmbeddingChecker{err: errors.New("timeout")})
		r := svc.Check(context.Background())

		if r.Status != Degraded {
			t.Errorf("status = %q, want %q", r.Status, Degraded)
		}
		if r.Checks["embedding"] != CheckError {
			t.Errorf("embedding = %q, want %q", r.Checks["embedding"], CheckError)
		}
	})

	t.Run("nil optional checkers are skipped", func(t *testing.T) {
		svc := New(&mockDBPinger{}, nil, nil)
		r := svc.Check(context.Background())

		if r.Status != Healthy {
			t.Errorf("status = %q, want %q", r.Status, Healthy)
		}
		if _, ok := r.Checks["index"]; ok {
			t.Error("index check should be absent when checker is nil")
		}
		if _, ok := r.Checks["embedding"]; ok {
			t.Error("embedding check should be absent when checker is nil")
		}
	})
}
