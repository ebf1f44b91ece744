package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/health"

	g "github.com/onsi/gomega"
)

func TestWaitUntilReady_readyBeforeBudget(t *testing.T) {
	g.RegisterTestingT(t)

	var polls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "starting"}`))

			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ready"}`))
	}))
	defer server.Close()

	monitor := health.New(10*time.Millisecond, time.Second)

	err := monitor.WaitUntilReady(context.Background(), server.URL)

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(atomic.LoadInt32(&polls)).To(g.BeNumerically(">=", 3))
}

func TestWaitUntilReady_timesOutAtBudget(t *testing.T) {
	g.RegisterTestingT(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	monitor := health.New(10*time.Millisecond, 80*time.Millisecond)

	start := time.Now()
	err := monitor.WaitUntilReady(context.Background(), server.URL)
	elapsed := time.Since(start)

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.KindOf(err)).To(g.Equal(errors.FaultHealthTimeout))
	g.Expect(elapsed).To(g.BeNumerically(">=", 80*time.Millisecond))
}

func TestWaitUntilReady_swallowsConnectionRefused(t *testing.T) {
	g.RegisterTestingT(t)

	// Nothing is listening at this endpoint; every poll fails softly until the
	// budget is spent.
	monitor := health.New(10*time.Millisecond, 60*time.Millisecond)

	err := monitor.WaitUntilReady(context.Background(), "http://127.0.0.1:1")

	g.Expect(errors.KindOf(err)).To(g.Equal(errors.FaultHealthTimeout))
}

func TestWaitUntilReady_cancelAbortsPromptly(t *testing.T) {
	g.RegisterTestingT(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "starting"}`))
	}))
	defer server.Close()

	monitor := health.New(10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := monitor.WaitUntilReady(ctx, server.URL)

	g.Expect(err).To(g.MatchError(context.Canceled))
	g.Expect(time.Since(start)).To(g.BeNumerically("<", 500*time.Millisecond))
}
