package controllers

import (
	"net/http"

	"github.com/harvestfield/farmlink-backend/api/middleware"
	"github.com/harvestfield/farmlink-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if farm := middleware.FarmIDFromContext(r.Context()); farm != "" {
			payload["farm_id"] = farm
		}
		responses.WriteSuccess(w, payload)
	}
}
