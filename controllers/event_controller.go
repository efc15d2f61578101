package controllers

import (
	"encoding/json"
	"net/http"

	"matchday_server/models"
	"matchday_server/services"
)

// EventController receives storage-layer write events and hands them to the
// roster and chat pipelines. The handlers acknowledge with 200 even when
// processing fails internally: the event source retries on redelivery, and
// nothing downstream of an event has a caller to report to. Only a payload
// that cannot be decoded at all is a 400.
type EventController struct {
	Roster *services.RosterService
	Chat   *services.ChatService
}

// NewEventController initializes the event controller
func NewEventController(roster *services.RosterService, chat *services.ChatService) *EventController {
	return &EventController{Roster: roster, Chat: chat}
}

// HandleRSVPEvent - process an RSVP created/updated/deleted event
func (c *EventController) HandleRSVPEvent(w http.ResponseWriter, r *http.Request) {
	var event models.RSVPEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	c.Roster.HandleRSVPEvent(r.Context(), &event)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// HandleChatMessageEvent - process a chat-message-created event
func (c *EventController) HandleChatMessageEvent(w http.ResponseWriter, r *http.Request) {
	var event models.ChatMessageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	c.Chat.HandleMessageCreate(r.Context(), &event)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
