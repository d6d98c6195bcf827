package installer

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/binstall/internal/domain/release"
)

func downloadEntry(url string) release.Entry {
	return release.Entry{Platform: linuxAMD64(), URL: url, SHA256: release.Digest(nil)}
}

// TestDownload_RetriesTemporaryStatus recovers once the server stops answering 503.
func TestDownload_RetriesTemporaryStatus(t *testing.T) {
	t.Parallel()

	body := []byte("payload")
	server := newArtifactServer(t, func(w http.ResponseWriter, r *http.Request, hit int32) {
		require.Contains(t, r.Header.Get("User-Agent"), "binstall/")

		if hit < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write(body)
	})

	inst := New(nil, t.TempDir(), fastOptions("linux", "amd64")...)

	data, err := inst.Download(context.Background(), downloadEntry(server.URL+"/artifact"))
	require.NoError(t, err)
	require.Equal(t, body, data)
	require.EqualValues(t, 3, server.hits.Load())
}

// TestDownload_PermanentStatus gives up immediately on client errors.
func TestDownload_PermanentStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusGone} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			t.Parallel()

			server := newArtifactServer(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
				w.WriteHeader(status)
			})

			inst := New(nil, t.TempDir(), fastOptions("linux", "amd64")...)

			_, err := inst.Download(context.Background(), downloadEntry(server.URL+"/artifact"))

			var statusErr *release.HTTPStatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, status, statusErr.StatusCode)
			require.False(t, statusErr.Temporary())
			require.EqualValues(t, 1, server.hits.Load())
		})
	}
}

// TestDownload_ExhaustsTemporaryStatus returns the last status after all attempts.
func TestDownload_ExhaustsTemporaryStatus(t *testing.T) {
	t.Parallel()

	server := newArtifactServer(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	inst := New(nil, t.TempDir(), append(fastOptions("linux", "amd64"), WithAttempts(4))...)

	_, err := inst.Download(context.Background(), downloadEntry(server.URL+"/artifact"))

	var statusErr *release.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.EqualValues(t, 4, server.hits.Load())
}

// TestDownload_TooLarge refuses bodies above the configured limit without retrying.
func TestDownload_TooLarge(t *testing.T) {
	t.Parallel()

	server := newArtifactServer(t, serveBytes(make([]byte, 64)))

	inst := New(nil, t.TempDir(), append(fastOptions("linux", "amd64"), WithMaxArtifactSize(16))...)

	_, err := inst.Download(context.Background(), downloadEntry(server.URL+"/artifact"))
	require.ErrorIs(t, err, errArtifactTooLarge)
	require.EqualValues(t, 1, server.hits.Load())
}

// TestDownload_ConnectionRefused reports a NetworkError carrying the attempt count.
func TestDownload_ConnectionRefused(t *testing.T) {
	t.Parallel()

	server := newArtifactServer(t, serveBytes(nil))
	url := server.URL + "/artifact"
	server.Close()

	inst := New(nil, t.TempDir(), fastOptions("linux", "amd64")...)

	_, err := inst.Download(context.Background(), downloadEntry(url))

	var networkErr *release.NetworkError
	require.ErrorAs(t, err, &networkErr)
	require.Equal(t, url, networkErr.URL)
	require.Equal(t, defaultAttempts, networkErr.Attempts)
}

// TestDownload_Canceled stops retrying once the context is done.
func TestDownload_Canceled(t *testing.T) {
	t.Parallel()

	server := newArtifactServer(t, serveBytes([]byte("payload")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inst := New(nil, t.TempDir(), fastOptions("linux", "amd64")...)

	_, err := inst.Download(ctx, downloadEntry(server.URL+"/artifact"))
	require.ErrorIs(t, err, context.Canceled)
}
