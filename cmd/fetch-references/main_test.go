package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBBL = `\begin{thebibliography}{3}
\bibitem{higgs} P.~W. Higgs, Phys. Rev. Lett. 13, 508 (1964), doi:10.1103/PhysRevLett.13.508.
\bibitem{qft} S.~Weinberg, The quantum theory of fields, arXiv:hep-th/9702027.
\bibitem{lost} A.~Nonymous, Unpublished notes.
\end{thebibliography}
`

func runCommand(t *testing.T, args ...string) (map[string]*string, error) {
	t.Helper()
	opts = options{}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	var res map[string]*string
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return res, nil
}

func writeBBL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refs.bbl")
	require.NoError(t, os.WriteFile(path, []byte(sampleBBL), 0o600))
	return path
}

func TestBBL_NoMatch(t *testing.T) {
	res, err := runCommand(t, "bbl", "--no-match", "--delatex", "", writeBBL(t))
	require.NoError(t, err)

	require.Len(t, res, 3)
	var resolved, unresolved int
	for _, id := range res {
		if id == nil {
			unresolved++
		} else {
			resolved++
		}
	}
	assert.Equal(t, 2, resolved)
	assert.Equal(t, 1, unresolved)
}

func TestBBL_UsesMatchURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query_ok":true,"results":[{"text":"a. nonymous, unpublished notes.","match":true,"doi":"http://dx.doi.org/10.1000/notes"}]}`))
	}))
	defer srv.Close()

	res, err := runCommand(t, "bbl", "--match-url", srv.URL, writeBBL(t))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	for _, id := range res {
		assert.NotNil(t, id)
	}
}

func TestBBL_MissingFile(t *testing.T) {
	_, err := runCommand(t, "bbl", "--no-match", filepath.Join(t.TempDir(), "absent.bbl"))
	assert.Error(t, err)
}

func TestBBL_RequiresOneArgument(t *testing.T) {
	_, err := runCommand(t, "bbl")
	assert.Error(t, err)
}
