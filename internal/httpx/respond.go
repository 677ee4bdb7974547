package httpx

import (
	"encoding/json"
	"net/http"
)

// MaxJSONBodyBytes caps request bodies on every JSON endpoint.
const MaxJSONBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
