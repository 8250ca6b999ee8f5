// Package helpdesk is the bundled support bot: it greets users, explains
// what it can do, and collects a title and description to file a Jira
// support ticket through a TicketCreator.
package helpdesk
