package reader

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"modescore/lib/modes"
)

var (
	prometheusReceivedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modescore_reader_received_messages_total",
		Help: "Frames that passed framing, counted before timestamp discipline and filtering.",
	})
	prometheusSuppressedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modescore_reader_suppressed_messages_total",
		Help: "Frames dropped by the admission filter.",
	})
	prometheusMLATMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modescore_reader_mlat_messages_total",
		Help: "Frames carrying the MLAT timestamp sentinel.",
	})
	prometheusOutliers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modescore_reader_outlier_timestamps_total",
		Help: "Timestamps discipline classified as outliers and dropped.",
	})
	prometheusEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modescore_reader_events_total",
		Help: "Synthetic event frames emitted, by DF.",
	}, []string{"df"})
)

func observeEvent(df int) {
	prometheusEvents.WithLabelValues(strconv.Itoa(df)).Inc()
}

func observeAdmission(admitted bool) {
	if admitted {
		return
	}
	prometheusSuppressedMessages.Inc()
}

func observeOutlier() { prometheusOutliers.Inc() }

func observeReceived(msg *modes.Message) {
	prometheusReceivedMessages.Inc()
	if isMLATSentinel(msg.Timestamp) {
		prometheusMLATMessages.Inc()
	}
}
