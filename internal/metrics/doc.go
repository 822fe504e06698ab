// Package metrics records image embedding metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics cost
// nothing unless a caller opts in with NewPrometheusRecorder. The CLI exports
// the registry in the node_exporter textfile format with WriteTextfile.
package metrics
