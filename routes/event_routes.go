package routes

import (
	"matchday_server/controllers"
	"matchday_server/services"

	"github.com/gorilla/mux"
)

// RegisterEventRoutes sets up routes for storage-event ingestion under /api/events
func RegisterEventRoutes(r *mux.Router, rosterService *services.RosterService, chatService *services.ChatService) {
	controller := controllers.NewEventController(rosterService, chatService)

	eventRouter := r.PathPrefix("/api/events").Subrouter()

	eventRouter.HandleFunc("/rsvp", controller.HandleRSVPEvent).Methods("POST")
	eventRouter.HandleFunc("/chat-message", controller.HandleChatMessageEvent).Methods("POST")
}
