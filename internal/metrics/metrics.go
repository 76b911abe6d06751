// Package metrics declares the docker/go-metrics namespaces this archiver
// instruments, modeled on distribution's metrics/prometheus.go and
// registry/storage/cache/metrics/prom.go.
//
// Unlike the teacher, this tool never serves an HTTP /metrics endpoint —
// it is a CLI that runs to completion and reports aggregated counts to its
// caller (spec.md §7). Both namespaces are registered with go-metrics'
// default registry in init, but nothing serves them over HTTP and no CLI
// command reads the counters back.
package metrics

import "github.com/docker/go-metrics"

const namespacePrefix = "galaxyarchive"

var (
	// DownloadNamespace covers the download engine (C4): chunk/block
	// fetch counts, bytes transferred, and failure counts.
	DownloadNamespace = metrics.NewNamespace(namespacePrefix, "download", nil)

	// StoreNamespace covers the content store (C2): writes, dedup hits,
	// and integrity-check outcomes.
	StoreNamespace = metrics.NewNamespace(namespacePrefix, "store", nil)
)

var (
	// ChunksDownloaded counts successful chunk downloads.
	ChunksDownloaded = DownloadNamespace.NewCounter("chunks_downloaded_total", "number of chunks successfully downloaded")

	// ChunksFailed counts failed chunk downloads (chunks are not retried)
	// and blob blocks that still failed after their one retry.
	ChunksFailed = DownloadNamespace.NewCounter("chunks_failed_total", "number of chunk downloads that failed")

	// BlocksDownloaded counts successful 100 MiB blob blocks downloaded.
	BlocksDownloaded = DownloadNamespace.NewCounter("blob_blocks_downloaded_total", "number of blob blocks successfully downloaded")

	// BlockRetries counts blob block retries after a failed attempt.
	BlockRetries = DownloadNamespace.NewCounter("blob_block_retries_total", "number of blob block download retries")

	// BytesWritten counts bytes committed to the content store.
	BytesWritten = StoreNamespace.NewCounter("bytes_written_total", "bytes written to the content store")

	// DedupHits counts writes skipped because the content already existed.
	DedupHits = StoreNamespace.NewCounter("dedup_hits_total", "writes skipped because content already existed")

	// BlockDuration times a single blob block download+write.
	BlockDuration = DownloadNamespace.NewTimer("blob_block_duration_seconds", "duration of a single blob block download and write")
)

func init() {
	metrics.Register(DownloadNamespace)
	metrics.Register(StoreNamespace)
}
