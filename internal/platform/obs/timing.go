package obs

import (
	"context"
	"time"

	"fleet-route-service/internal/platform/logger"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

var timingLog logger.Logger = logger.NopLogger{}

// SetLogger sets the logger used by Time.
func SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.NopLogger{}
	}
	timingLog = l
}

// Time starts timing an operation; call the returned func with the address of
// the named error result, usually via defer.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			OperationDuration.WithLabelValues(name, "error").Observe(dur.Seconds())
			timingLog.Warnf("req_id=%s op=%s dur=%dms err=%v", reqID, name, dur.Milliseconds(), *errp)
			return
		}
		OperationDuration.WithLabelValues(name, "ok").Observe(dur.Seconds())
		timingLog.Debugf("req_id=%s op=%s dur=%dms", reqID, name, dur.Milliseconds())
	}
}
