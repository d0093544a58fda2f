// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package mockverifier

import (
	"net/http"
)

func registerRoutes(
	mux *http.ServeMux,
	routes map[string]http.Handler,
) {
	for route, handler := range routes {
		mux.Handle(route, handler)
	}
}

func (m *Mock) addRoutes() map[string]http.Handler {
	routes := make(map[string]http.Handler)

	routes["POST /api/v1/verifier-back/procivis"] = http.HandlerFunc(m.startVerification)
	routes["GET /api/v1/verifier-status/procivis/{id}"] = http.HandlerFunc(m.status)
	routes["POST /api/v1/createCredential/procivis"] = http.HandlerFunc(m.createCredential)

	return routes
}
