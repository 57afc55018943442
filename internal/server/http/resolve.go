package httpserver

import (
	"io"
	"net/http"
	"strings"
)

// maxBibliographyBytes bounds the raw bibliography accepted by /resolve.
const maxBibliographyBytes = 4 << 20

// resolveBibliography handles POST /resolve. The body is a raw bibliography
// document; the response maps each cleaned citation to its identifier, or
// null when it could not be resolved.
func (s *Server) resolveBibliography(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBibliographyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "bibliography too large")
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		writeError(w, http.StatusBadRequest, "empty bibliography")
		return
	}

	resolution, err := s.deps.Resolver.Resolve(r.Context(), string(body))
	if err != nil {
		s.logger.Error().Err(err).Int("bytes", len(body)).Msg("resolve bibliography failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolution)
}
