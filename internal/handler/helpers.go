package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes v as the JSON body of a response with the given
// status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
