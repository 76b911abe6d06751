package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/stretchr/testify/require"

	"github.com/Dimensional/GalaxyDL/internal/store"
)

func fixedClock(t string) Clock {
	return func() string { return t }
}

func TestBlockRangeLastBlockIsShort(t *testing.T) {
	start, end := BlockRange(2, 250_000_000, DefaultBlockSize)
	require.Equal(t, int64(2)*DefaultBlockSize, start)
	require.Equal(t, int64(250_000_000-1), end)
}

func TestTotalBlocksCeilsUp(t *testing.T) {
	require.Equal(t, 3, TotalBlocks(250_000_000, DefaultBlockSize))
	require.Equal(t, 1, TotalBlocks(1, DefaultBlockSize))
	require.Equal(t, 0, TotalBlocks(0, DefaultBlockSize))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "galaxy-download-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return store.New(dir)
}

// rangeServer serves a fixed byte payload, honoring Range requests.
func rangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
			w.WriteHeader(http.StatusOK)
			return
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Write(payload)
			return
		}

		var start, end int64
		fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end)
		if end >= int64(len(payload)) {
			end = int64(len(payload)) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[start : end+1])
	}))
}

func TestDownloadBlobSmallSingleBlock(t *testing.T) {
	payload := bytesOfLen(1024, 'x')
	srv := rangeServer(t, payload)
	defer srv.Close()

	s := newTestStore(t)
	f := cdn.NewFetcher(srv.Client())
	e := &Engine{Store: s, Fetcher: f, BlockSize: DefaultBlockSize, Now: fixedClock("t1")}

	err := e.DownloadBlob(context.Background(), srv.URL, "blobs/r1/main.bin", "blobs/r1/main.json")
	require.NoError(t, err)

	got, err := s.ReadFile("blobs/r1/main.bin")
	require.NoError(t, err)
	require.Equal(t, payload, got)

	require.True(t, s.Exists("blobs/r1/main.json"))
	require.True(t, s.Exists("blobs/r1/main.xml"))
}

func TestDownloadBlobSkipsAlreadyCompleteBlob(t *testing.T) {
	payload := bytesOfLen(int(3*1024), 'y') // tiny "blocks" via small BlockSize below
	srv := rangeServer(t, payload)
	defer srv.Close()

	s := newTestStore(t)
	f := cdn.NewFetcher(srv.Client())

	blockSize := int64(1024)
	e := &Engine{Store: s, Fetcher: f, BlockSize: blockSize, Now: fixedClock("t1")}

	// First run: download the whole blob, three 1 KiB blocks.
	err := e.DownloadBlob(context.Background(), srv.URL, "blobs/r2/main.bin", "blobs/r2/main.json")
	require.NoError(t, err)

	// Simulate a fresh resume on an already-complete blob: no new bytes
	// written, HEAD short-circuit should apply.
	var calls int32
	countingHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
			return
		}
		t.Fatalf("unexpected GET on a fully-resumed blob")
	})
	srv2 := httptest.NewServer(countingHandler)
	defer srv2.Close()

	e2 := &Engine{Store: s, Fetcher: cdn.NewFetcher(srv2.Client()), BlockSize: blockSize, Now: fixedClock("t2")}
	err = e2.DownloadBlob(context.Background(), srv2.URL, "blobs/r2/main.bin", "blobs/r2/main.json")
	require.NoError(t, err)
	require.Equal(t, int32(1), calls) // only the HEAD
}

func TestDownloadChunkRejectsMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wrong content"))
	}))
	defer srv.Close()

	s := newTestStore(t)
	f := cdn.NewFetcher(srv.Client())

	err := DownloadChunk(context.Background(), s, f, srv.URL, "deadbeefdeadbeefdeadbeefdeadbeef")
	require.Error(t, err)
}

func TestDownloadChunkSucceeds(t *testing.T) {
	data := []byte("chunk payload")
	hexHash := contenthash.MD5Hex(data)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	s := newTestStore(t)
	f := cdn.NewFetcher(srv.Client())

	err := DownloadChunk(context.Background(), s, f, srv.URL, hexHash)
	require.NoError(t, err)
}

func TestPoolRunsBoundedConcurrency(t *testing.T) {
	p := NewPool(2)

	var active, maxActive int32
	tasks := make([]func(ctx context.Context) error, 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			atomic.AddInt32(&active, -1)
			return nil
		}
	}

	require.NoError(t, p.Run(context.Background(), tasks))
	require.LessOrEqual(t, maxActive, int32(2))
}

func bytesOfLen(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
