// ABOUTME: Ticket creation collaborator invoked when the support form is filled
// ABOUTME: The placeholder implementation returns a fixed link for demos and tests

package helpdesk

import "context"

// Ticket is a filled support request.
type Ticket struct {
	Title       string
	Description string
	Reporter    string // user id of the requester
}

// TicketCreator files a ticket in an issue tracker and returns its link.
type TicketCreator interface {
	CreateTicket(ctx context.Context, t Ticket) (string, error)
}

// TicketCreatorFunc adapts a function to TicketCreator.
type TicketCreatorFunc func(ctx context.Context, t Ticket) (string, error)

// CreateTicket calls f.
func (f TicketCreatorFunc) CreateTicket(ctx context.Context, t Ticket) (string, error) {
	return f(ctx, t)
}

// PlaceholderLink is what PlaceholderTickets returns.
const PlaceholderLink = "<jira link with ticket created>"

// PlaceholderTickets creates no ticket and returns PlaceholderLink.
type PlaceholderTickets struct{}

// CreateTicket returns PlaceholderLink.
func (PlaceholderTickets) CreateTicket(context.Context, Ticket) (string, error) {
	return PlaceholderLink, nil
}

// FormatTicket renders the confirmation sent once a ticket exists.
func FormatTicket(link string, t Ticket) string {
	return link + " \nTitle: " + t.Title + " \nDescription: " + t.Description
}
