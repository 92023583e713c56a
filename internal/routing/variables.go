package routing

import (
	"time"

	"github.com/estatedesk/lead-router/internal/leads"
	"github.com/estatedesk/lead-router/pkg/db/models"
)

// templateVariables is the context handed to the mail templates.
func templateVariables(snap *leads.Snapshot, assignment *models.LeadAssignment, broker *models.Broker) map[string]any {
	deadline := ""
	if assignment.ExpiresAt != nil {
		deadline = assignment.ExpiresAt.UTC().Format(time.RFC3339)
	}
	listing := snap.Listing
	lead := snap.Lead
	return map[string]any{
		"broker_name": broker.Name,
		"listing": map[string]any{
			"id":       listing.ID.String(),
			"title":    listing.Title,
			"address":  listing.Address,
			"price":    listing.Price.StringFixed(2),
			"region":   listing.Region,
			"locality": listing.Locality,
		},
		"owner": map[string]any{
			"name":  listing.OwnerName,
			"phone": deref(listing.OwnerPhone),
			"email": deref(listing.OwnerEmail),
		},
		"requester": map[string]any{
			"name":    lead.RequesterName,
			"email":   deref(lead.RequesterEmail),
			"phone":   deref(lead.RequesterPhone),
			"message": lead.Message,
		},
		"assignment": map[string]any{
			"id":       assignment.ID.String(),
			"tier":     string(assignment.Tier),
			"attempt":  assignment.Attempt,
			"deadline": deadline,
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
