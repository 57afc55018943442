package arxiv

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

const sampleBBL = `\begin{thebibliography}{1}
\bibitem{a} A. Author, arXiv:1501.00001.
\end{thebibliography}
`

// newTestClient creates a client whose e-print and export endpoints both
// point at serverURL.
func newTestClient(serverURL string, maxArchive int64) *Client {
	cfg := Config{
		BaseURL:        serverURL,
		ExportURL:      serverURL + "/api",
		Timeout:        5 * time.Second,
		MaxArchiveSize: maxArchive,
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		Timeout:   cfg.Timeout,
		RateLimit: 100, // High rate for testing
		BurstSize: 100,
		UserAgent: "TestClient/1.0",
	})

	return NewWithHTTPClient(cfg, httpClient)
}

type tarFile struct {
	name    string
	content string
}

func buildTar(t *testing.T, files ...tarFile) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.name,
			Mode:     0o644,
			Size:     int64(len(f.content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serveEPrint(t *testing.T, wantPath string, body []byte) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/x-eprint-tar")
		w.Write(body)
	}))
}

func TestNew(t *testing.T) {
	client := New(Config{}, nil)

	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultExportURL, client.config.ExportURL)
	assert.Equal(t, DefaultTimeout, client.config.Timeout)
	assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
	assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
	assert.Equal(t, DefaultMaxArchiveSize, client.config.MaxArchiveSize)
	assert.Equal(t, sourceName, client.httpClient.Source())
}

func TestClient_FetchBibliographies(t *testing.T) {
	t.Run("gzipped tar with bbl files", func(t *testing.T) {
		archive := gzipBytes(t, buildTar(t,
			tarFile{name: "main.tex", content: `\documentclass{article}`},
			tarFile{name: "main.bbl", content: sampleBBL},
			tarFile{name: "figs/plot.eps", content: "%!PS"},
			tarFile{name: "supp/appendix.BBL", content: `\bibitem{b} B.`},
		))
		server := serveEPrint(t, "/e-print/1401.2910", archive)
		defer server.Close()

		docs, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "1401.2910")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, sampleBBL, docs[0])
		assert.Equal(t, `\bibitem{b} B.`, docs[1])
	})

	t.Run("uncompressed tar", func(t *testing.T) {
		archive := buildTar(t, tarFile{name: "paper.bbl", content: sampleBBL})
		server := serveEPrint(t, "/e-print/1401.2910", archive)
		defer server.Close()

		docs, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "1401.2910")
		require.NoError(t, err)
		assert.Equal(t, []string{sampleBBL}, docs)
	})

	t.Run("accepts prefixed identifiers", func(t *testing.T) {
		archive := buildTar(t, tarFile{name: "paper.bbl", content: sampleBBL})
		server := serveEPrint(t, "/e-print/1401.2910", archive)
		defer server.Close()

		docs, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "http://arxiv.org/abs/1401.2910")
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("archive without bbl yields empty slice", func(t *testing.T) {
		archive := gzipBytes(t, buildTar(t, tarFile{name: "main.tex", content: "hello"}))
		server := serveEPrint(t, "/e-print/1401.2910", archive)
		defer server.Close()

		docs, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "1401.2910")
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	t.Run("gzipped single file with inline bibliography", func(t *testing.T) {
		tex := "\\documentclass{article}\n\\begin{document}\n" + sampleBBL + "\\end{document}\n"
		server := serveEPrint(t, "/e-print/1401.2910", gzipBytes(t, []byte(tex)))
		defer server.Close()

		docs, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "1401.2910")
		require.NoError(t, err)
		assert.Equal(t, []string{tex}, docs)
	})

	t.Run("gzipped single file without bibliography", func(t *testing.T) {
		server := serveEPrint(t, "/e-print/1401.2910", gzipBytes(t, []byte("just text")))
		defer server.Close()

		docs, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "1401.2910")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("archive over size limit", func(t *testing.T) {
		archive := buildTar(t, tarFile{name: "paper.bbl", content: sampleBBL})
		server := serveEPrint(t, "/e-print/1401.2910", archive)
		defer server.Close()

		_, err := newTestClient(server.URL, 100).FetchBibliographies(context.Background(), "1401.2910")
		assert.ErrorIs(t, err, ErrArchiveTooLarge)
	})

	t.Run("not found", func(t *testing.T) {
		server := serveEPrint(t, "/e-print/other", nil)
		defer server.Close()

		_, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "1401.2910")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("denied"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, 0).FetchBibliographies(context.Background(), "1401.2910")

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "denied", apiErr.Message)
	})

	t.Run("empty identifier", func(t *testing.T) {
		_, err := newTestClient("http://unused", 0).FetchBibliographies(context.Background(), "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

const doiSearchFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>1</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/1401.2910v2</id>
    <title>Some Paper</title>
    <arxiv:doi>10.1103/PhysRevD.91.123</arxiv:doi>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>0</opensearch:totalResults>
</feed>`

const errorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_bogus</id>
    <title>Error</title>
  </entry>
</feed>`

func TestClient_LookupArXivID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/query", r.URL.Path)
			gotQuery = r.URL.Query().Get("search_query")
			assert.Equal(t, "1", r.URL.Query().Get("max_results"))
			w.Write([]byte(doiSearchFeed))
		}))
		defer server.Close()

		id, err := newTestClient(server.URL, 0).LookupArXivID(context.Background(), "http://dx.doi.org/10.1103/PhysRevD.91.123")
		require.NoError(t, err)
		assert.Equal(t, "1401.2910", id)
		assert.Equal(t, "doi:10.1103/PhysRevD.91.123", gotQuery)
	})

	t.Run("no match is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(emptyFeed))
		}))
		defer server.Close()

		id, err := newTestClient(server.URL, 0).LookupArXivID(context.Background(), "10.1000/none")
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("malformed feed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<feed><entry>"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, 0).LookupArXivID(context.Background(), "10.1000/x")
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	})
}

func TestClient_LookupDOI(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1401.2910", r.URL.Query().Get("id_list"))
			w.Write([]byte(doiSearchFeed))
		}))
		defer server.Close()

		doi, err := newTestClient(server.URL, 0).LookupDOI(context.Background(), "arXiv:1401.2910")
		require.NoError(t, err)
		assert.Equal(t, "10.1103/PhysRevD.91.123", doi)
	})

	t.Run("api error entry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(errorFeed))
		}))
		defer server.Close()

		doi, err := newTestClient(server.URL, 0).LookupDOI(context.Background(), "bogus")
		require.NoError(t, err)
		assert.Empty(t, doi)
	})

	t.Run("empty identifier short-circuits", func(t *testing.T) {
		doi, err := newTestClient("http://unused", 0).LookupDOI(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, doi)
	})
}

func TestExtractArXivID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://arxiv.org/abs/2301.12345v1", "2301.12345"},
		{"http://arxiv.org/abs/hep-th/9901001v3", "hep-th/9901001"},
		{"http://arxiv.org/abs/1401.2910", "1401.2910"},
		{"http://arxiv.org/api/errors#bad", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractArXivID(tt.input))
		})
	}
}
