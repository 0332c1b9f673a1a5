package control

import (
	"strconv"
	"time"

	"github.com/waves-audio/engine/internal/metrics"
)

func recordDispatchMetrics(method string, resp Response, elapsed time.Duration) {
	outcome := "ok"
	if resp.Error != nil {
		outcome = strconv.Itoa(resp.Error.Code)
	}
	metrics.RPCRequestsTotal.WithLabelValues(method, outcome).Inc()
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
