package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Events streams the cart as server-sent events: the current cart first,
// then the cart after every mutation call. A slow client only ever sees
// the latest cart.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	updates, unsubscribe := h.cart.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case cart, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(toCartResponse(cart))
			if err != nil {
				h.log.WithError(err).Warn("failed to encode cart event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
