package stubs

import (
	"staychat/internal/models"
)

// Agents is the roster a fresh install starts with, so the chat panel
// has counterparties before an operator provisions real ones.
var Agents = []models.SupportAgent{
	{ID: "support", Name: "Guest Support", AvatarURL: "https://api.dicebear.com/7.x/avataaars/svg?seed=Support", Status: models.AgentStatusOffline, Title: "Support Team"},
	{ID: "booking", Name: "Booking Desk", AvatarURL: "https://api.dicebear.com/7.x/avataaars/svg?seed=Booking", Status: models.AgentStatusOffline, Title: "Reservations"},
}
