// ABOUTME: The shipped help-desk bot: greeting, fallback, and a Jira support ticket form
// ABOUTME: Registers its forms and intent handlers for the conversation manager

package helpdesk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/coven-helpdesk/internal/form"
	"github.com/2389/coven-helpdesk/internal/intent"
	"github.com/2389/coven-helpdesk/internal/session"
)

// Intent labels the classifier is expected to produce.
const (
	IntentHello      = "Hello"
	IntentJiraTicket = "Jira Support Ticket"
)

// FormJiraTicket collects a ticket title and description.
const FormJiraTicket = "jira_support_ticket_form"

// User-facing messages.
const (
	MsgHello    = "Hello"
	MsgFallback = "Could not determine your request. I am currently able to assist you with:\n" +
		"• submitting a support request jira ticket \n"
	MsgTicketIntro       = "I can create a Jira ticket for you!"
	MsgTitlePrompt       = "What would you like the title to be? [type 'q' to quit]"
	MsgDescriptionPrompt = "What would you like the description to be? [type 'q' to quit]"
	MsgTicketCancelled   = "Okay, I won't create a ticket."
	MsgAddingUsers       = "Adding users..."
)

// Replier sends a message back to the channel a turn came from.
type Replier interface {
	Reply(ctx context.Context, turn session.Context, text string) error
}

// Forms returns the form declarations the bot uses.
func Forms() map[string][]string {
	return map[string][]string{
		FormJiraTicket: {"title", "description"},
	}
}

// Bot holds the collaborators shared by the intent handlers.
type Bot struct {
	replier Replier
	tickets TicketCreator
	engine  *form.Engine
	logger  *slog.Logger
}

// New creates the bot. A nil tickets uses PlaceholderTickets.
func New(replier Replier, tickets TicketCreator, engine *form.Engine, logger *slog.Logger) *Bot {
	if tickets == nil {
		tickets = PlaceholderTickets{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		replier: replier,
		tickets: tickets,
		engine:  engine,
		logger:  logger.With("component", "helpdesk"),
	}
}

// Handlers returns the intent map to register with an intent.Router.
func (b *Bot) Handlers() map[string]intent.Handler {
	return map[string]intent.Handler{
		intent.Fallback:  intent.HandlerFunc(b.respondOther),
		IntentHello:      intent.HandlerFunc(b.respondHello),
		IntentJiraTicket: intent.HandlerFunc(b.respondJiraTicket),
	}
}

func (b *Bot) respondHello(ctx context.Context, sess *session.Session, turn session.Context) error {
	if err := b.replier.Reply(ctx, turn, MsgHello); err != nil {
		return err
	}
	sess.Clear()
	return nil
}

func (b *Bot) respondOther(ctx context.Context, sess *session.Session, turn session.Context) error {
	if err := b.replier.Reply(ctx, turn, MsgFallback); err != nil {
		return err
	}
	sess.Clear()
	return nil
}

// ticketFields pairs each form field with the question that asks for it.
var ticketFields = []struct {
	name   string
	prompt string
}{
	{"title", MsgTitlePrompt},
	{"description", MsgDescriptionPrompt},
}

func (b *Bot) respondJiraTicket(ctx context.Context, sess *session.Session, turn session.Context) error {
	f, err := sess.Form(FormJiraTicket)
	if err != nil {
		return err
	}

	if _, awaiting := f.Requested(); !awaiting && !f.Filled() {
		if err := b.replier.Reply(ctx, turn, MsgTicketIntro); err != nil {
			return err
		}
	}

	for _, field := range ticketFields {
		prompt := field.prompt
		step, err := b.engine.RequestField(ctx, f, field.name, turn.Message, func(ctx context.Context) error {
			return b.replier.Reply(ctx, turn, prompt)
		})
		if err != nil {
			return err
		}
		if step == form.StepCancelled {
			b.logger.Info("ticket form cancelled", "user_id", turn.UserID)
			if err := b.replier.Reply(ctx, turn, MsgTicketCancelled); err != nil {
				return err
			}
			sess.Clear()
			return nil
		}
	}

	if !f.Filled() {
		return nil
	}

	if err := b.replier.Reply(ctx, turn, MsgAddingUsers); err != nil {
		return err
	}
	title, _ := f.Value("title")
	description, _ := f.Value("description")
	ticket := Ticket{
		Title:       title,
		Description: description,
		Reporter:    turn.UserID,
	}
	link, err := b.tickets.CreateTicket(ctx, ticket)
	if err != nil {
		return fmt.Errorf("creating ticket: %w", err)
	}
	b.logger.Info("ticket created", "user_id", turn.UserID, "link", link)

	if err := b.replier.Reply(ctx, turn, FormatTicket(link, ticket)); err != nil {
		return err
	}
	sess.Clear()
	return nil
}
