package kis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madang_feed_frames_received_total",
		Help: "Raw frames received from the upstream feed.",
	})
	recordsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madang_feed_records_decoded_total",
		Help: "Frames decoded into quote or order-book records.",
	})
	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madang_feed_decode_failures_total",
		Help: "Frames with a known transaction id that failed to decode.",
	})
	feedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madang_feed_reconnects_total",
		Help: "Times the supervisor re-entered the connect cycle after a drop.",
	})
	feedConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "madang_feed_connected",
		Help: "Whether the upstream feed connection is currently established.",
	})
)
