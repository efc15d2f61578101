package routes

import (
	"matchday_server/controllers"
	"matchday_server/services"

	"github.com/gorilla/mux"
)

// RegisterRSVPRoutes sets up routes for RSVP operations under /api/rsvp
func RegisterRSVPRoutes(r *mux.Router, rosterService *services.RosterService) {
	controller := controllers.NewRSVPController(rosterService)

	rsvpRouter := r.PathPrefix("/api/rsvp").Subrouter()

	rsvpRouter.HandleFunc("", controller.SetRSVP).Methods("POST")
}
