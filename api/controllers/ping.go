package controllers

import (
	"net/http"

	"github.com/angelmondragon/playgate/api/middleware"
	"github.com/angelmondragon/playgate/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "admin", "status": "ok"}
		if viewer := middleware.ViewerIDFromContext(r.Context()); viewer != "" {
			payload["viewer_id"] = viewer
		}
		responses.WriteSuccess(w, payload)
	}
}
