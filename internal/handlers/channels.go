package handlers

import (
	"net/http"

	"clipfinder/internal/storage"
)

// ChannelHandler serves the channel facet listing.
type ChannelHandler struct {
	videos storage.VideoStore
}

// NewChannelHandler creates a new ChannelHandler.
func NewChannelHandler(videos storage.VideoStore) *ChannelHandler {
	return &ChannelHandler{videos: videos}
}

// ChannelResponse represents one channel facet.
type ChannelResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ServeHTTP returns distinct channels with video counts.
func (h *ChannelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channels, err := h.videos.ListChannels(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]ChannelResponse, 0, len(channels))
	for _, c := range channels {
		out = append(out, ChannelResponse{Name: c.Name, Count: c.Count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": out})
}
