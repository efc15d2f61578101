package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"matchday_server/models"
	"matchday_server/services"
)

// RSVPController struct
type RSVPController struct {
	RosterService *services.RosterService
}

// NewRSVPController initializes the RSVP controller
func NewRSVPController(service *services.RosterService) *RSVPController {
	return &RSVPController{RosterService: service}
}

// SetRSVP - create or overwrite a user's RSVP for a match
func (c *RSVPController) SetRSVP(w http.ResponseWriter, r *http.Request) {
	var request struct {
		MatchID string `json:"matchId"`
		UserID  string `json:"userId"`
		Status  string `json:"status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if request.MatchID == "" || request.UserID == "" {
		http.Error(w, `{"error": "Missing required fields: matchId or userId"}`, http.StatusBadRequest)
		return
	}
	switch request.Status {
	case models.RSVPStatusYes, models.RSVPStatusMaybe, models.RSVPStatusNo:
	default:
		http.Error(w, `{"error": "status must be yes, maybe or no"}`, http.StatusBadRequest)
		return
	}

	rsvp := models.RSVP{
		MatchID: request.MatchID,
		UserID:  request.UserID,
		Status:  request.Status,
	}
	if err := c.RosterService.SetRSVP(r.Context(), rsvp); err != nil {
		log.Printf("Failed to set RSVP for match %s user %s: %v", request.MatchID, request.UserID, err)
		http.Error(w, `{"error": "Failed to set RSVP"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}
