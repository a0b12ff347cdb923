package ports

// Metric names reported through Observability.
const (
	MetricLinesRead     = "sensorlog_lines_read_total"
	MetricRowsAppended  = "sensorlog_rows_appended_total"
	MetricLinesSkipped  = "sensorlog_lines_skipped_total"
	MetricReadTimeouts  = "sensorlog_read_timeouts_total"
	MetricAppendLatency = "sensorlog_append_latency_seconds"
	MetricPipelineState = "sensorlog_pipeline_state"
	MetricSinkSizeBytes = "sensorlog_sink_size_bytes"
)
