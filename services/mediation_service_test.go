package services

import (
	"context"
	"errors"
	"testing"

	"swapit/internal/status"
	"swapit/models"
	"swapit/monitoring"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mediationFixture struct {
	service      *MediationService
	router       *SessionRouter
	negotiations *fakeNegotiationStore
	tickets      *fakeTicketStore
	transcript   *fakeTranscript
	publisher    *fakePublisher
	generator    *fakeGenerator
}

func newMediationFixture(t *testing.T) *mediationFixture {
	t.Helper()

	negotiations := newFakeNegotiationStore()
	tickets := newFakeTicketStore()
	transcript := &fakeTranscript{}
	publisher := &fakePublisher{}
	generator := &fakeGenerator{reply: "mediated reply"}
	monitor := monitoring.NewMonitor()
	router := NewSessionRouter(negotiations, monitor)

	require.NoError(t, tickets.InsertTicket(context.Background(), &models.Ticket{
		TicketID: "T1",
		SellerID: "seller-1",
		Category: "travel",
		Details:  map[string]any{"from": "VTE", "to": "LPQ"},
		AskPrice: decimal.NewFromInt(45),
		Status:   models.TicketNegotiating,
	}))
	require.NoError(t, negotiations.InsertNegotiation(context.Background(), &models.Negotiation{
		NegotiationID: "N1",
		TicketID:      "T1",
		SellerID:      "seller-1",
		BuyerID:       "buyer-1",
		Status:        models.NegotiationOpen,
	}))

	return &mediationFixture{
		service:      NewMediationService(negotiations, tickets, transcript, router, generator, publisher, monitor),
		router:       router,
		negotiations: negotiations,
		tickets:      tickets,
		transcript:   transcript,
		publisher:    publisher,
		generator:    generator,
	}
}

func buyerMsg(text string) *PartyMessage {
	return &PartyMessage{
		NegotiationID: "N1",
		Role:          models.RoleBuyer,
		PartyID:       "buyer-1",
		Text:          text,
	}
}

func TestSubmitPartyMessageAppendsRawThenMediated(t *testing.T) {
	f := newMediationFixture(t)

	err := f.service.SubmitPartyMessage(context.Background(), buyerMsg("can you do 30?"))
	require.NoError(t, err)

	require.Len(t, f.transcript.appended, 2)

	raw := f.transcript.appended[0]
	assert.Equal(t, models.RoleBuyer, raw.Role)
	assert.Equal(t, "can you do 30?", raw.Text)
	assert.Empty(t, raw.Direction)

	mediated := f.transcript.appended[1]
	assert.Equal(t, models.RoleMediator, mediated.Role)
	assert.Equal(t, models.DirectionToSeller, mediated.Direction)
	assert.Equal(t, "mediated reply", mediated.Text)
}

func TestSubmitPartyMessageDeliversToBoundCounterparty(t *testing.T) {
	f := newMediationFixture(t)
	require.NoError(t, f.router.JoinAsRole(context.Background(), "N1", models.RoleSeller, "seller-1", "seller-conn"))

	err := f.service.SubmitPartyMessage(context.Background(), buyerMsg("offer"))
	require.NoError(t, err)

	calls := f.publisher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ConnChannel("seller-conn"), calls[0].channel)
	assert.Equal(t, "agent_to_seller", calls[0].payload["type"])
	assert.Equal(t, "N1", calls[0].payload["negotiation_id"])
	assert.Equal(t, "mediated reply", calls[0].payload["message"])
}

func TestSubmitPartyMessageSellerDirection(t *testing.T) {
	f := newMediationFixture(t)
	require.NoError(t, f.router.JoinAsRole(context.Background(), "N1", models.RoleBuyer, "buyer-1", "buyer-conn"))

	err := f.service.SubmitPartyMessage(context.Background(), &PartyMessage{
		NegotiationID: "N1",
		Role:          models.RoleSeller,
		PartyID:       "seller-1",
		Text:          "lowest I can go is 40",
	})
	require.NoError(t, err)

	require.Len(t, f.transcript.appended, 2)
	assert.Equal(t, models.DirectionToBuyer, f.transcript.appended[1].Direction)

	calls := f.publisher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "agent_to_buyer", calls[0].payload["type"])
}

func TestSubmitPartyMessageAbsentCounterpartyTranscriptOnly(t *testing.T) {
	f := newMediationFixture(t)

	err := f.service.SubmitPartyMessage(context.Background(), buyerMsg("anyone there?"))
	require.NoError(t, err)

	assert.Len(t, f.transcript.appended, 2)
	assert.Empty(t, f.publisher.calls())
}

func TestSubmitPartyMessageAckBeforeGeneration(t *testing.T) {
	f := newMediationFixture(t)

	msg := buyerMsg("hello")
	msg.SenderConn = "buyer-conn"
	require.NoError(t, f.service.SubmitPartyMessage(context.Background(), msg))

	calls := f.publisher.calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, ConnChannel("buyer-conn"), calls[0].channel)
	assert.Equal(t, "agent_ack", calls[0].payload["type"])
	assert.Equal(t, "Noted. I'm checking with the seller now.", calls[0].payload["message"])
}

func TestSubmitPartyMessageSellerAckText(t *testing.T) {
	f := newMediationFixture(t)

	err := f.service.SubmitPartyMessage(context.Background(), &PartyMessage{
		NegotiationID: "N1",
		Role:          models.RoleSeller,
		PartyID:       "seller-1",
		Text:          "ok",
		SenderConn:    "seller-conn",
	})
	require.NoError(t, err)

	calls := f.publisher.calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "Thanks. I'm relaying this to the buyer.", calls[0].payload["message"])
}

func TestSubmitPartyMessageGeneratorFailureUsesFallback(t *testing.T) {
	f := newMediationFixture(t)
	f.generator.err = errors.New("connection refused")
	require.NoError(t, f.router.JoinAsRole(context.Background(), "N1", models.RoleSeller, "seller-1", "seller-conn"))

	err := f.service.SubmitPartyMessage(context.Background(), buyerMsg("offer"))
	require.NoError(t, err)

	require.Len(t, f.transcript.appended, 2)
	assert.Equal(t, FallbackReply, f.transcript.appended[1].Text)

	calls := f.publisher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, FallbackReply, calls[0].payload["message"])
}

func TestSubmitPartyMessageEmptyGeneratorReplyUsesFallback(t *testing.T) {
	f := newMediationFixture(t)
	f.generator.reply = "   "

	err := f.service.SubmitPartyMessage(context.Background(), buyerMsg("offer"))
	require.NoError(t, err)

	require.Len(t, f.transcript.appended, 2)
	assert.Equal(t, FallbackReply, f.transcript.appended[1].Text)
}

func TestSubmitPartyMessageUnknownNegotiation(t *testing.T) {
	f := newMediationFixture(t)

	msg := buyerMsg("hi")
	msg.NegotiationID = "missing"
	err := f.service.SubmitPartyMessage(context.Background(), msg)

	assert.ErrorIs(t, err, status.ErrNotFound)
	assert.Empty(t, f.transcript.appended)
	assert.Zero(t, f.generator.calls)
}

func TestSubmitPartyMessagePartyMismatch(t *testing.T) {
	f := newMediationFixture(t)

	msg := buyerMsg("hi")
	msg.PartyID = "impostor"
	err := f.service.SubmitPartyMessage(context.Background(), msg)

	assert.ErrorIs(t, err, status.ErrRoleMismatch)
	assert.Empty(t, f.transcript.appended)
	assert.Empty(t, f.publisher.calls())
}

func TestSubmitPartyMessageClosedNegotiation(t *testing.T) {
	f := newMediationFixture(t)
	require.NoError(t, f.negotiations.CloseNegotiation(context.Background(), "N1", nil))

	err := f.service.SubmitPartyMessage(context.Background(), buyerMsg("too late"))

	assert.ErrorIs(t, err, status.ErrInvalidState)
	assert.Empty(t, f.transcript.appended)
}

func TestSubmitPartyMessageTicketLookupFailureStillMediates(t *testing.T) {
	f := newMediationFixture(t)
	delete(f.tickets.tickets, "T1")

	err := f.service.SubmitPartyMessage(context.Background(), buyerMsg("still works"))
	require.NoError(t, err)

	assert.Len(t, f.transcript.appended, 2)
	assert.Equal(t, 1, f.generator.calls)
}

type hookGenerator struct {
	reply string
	hook  func()
}

func (g *hookGenerator) Generate(_ context.Context, _ string) (string, error) {
	if g.hook != nil {
		g.hook()
	}
	return g.reply, nil
}

func TestSubmitPartyMessageSenderDisconnectDoesNotAbort(t *testing.T) {
	f := newMediationFixture(t)
	require.NoError(t, f.router.JoinAsRole(context.Background(), "N1", models.RoleBuyer, "buyer-1", "buyer-conn"))
	require.NoError(t, f.router.JoinAsRole(context.Background(), "N1", models.RoleSeller, "seller-1", "seller-conn"))

	// The sender drops while the generator call is in flight; once the
	// raw message is accepted the pipeline still runs to completion.
	f.service.generator = &hookGenerator{
		reply: "mediated reply",
		hook: func() {
			f.router.OnDisconnect("buyer-conn")
		},
	}

	msg := buyerMsg("going offline")
	msg.SenderConn = "buyer-conn"
	require.NoError(t, f.service.SubmitPartyMessage(context.Background(), msg))

	require.Len(t, f.transcript.appended, 2)
	assert.Equal(t, models.RoleMediator, f.transcript.appended[1].Role)
	assert.Equal(t, "mediated reply", f.transcript.appended[1].Text)

	calls := f.publisher.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "agent_ack", calls[0].payload["type"])
	assert.Equal(t, ConnChannel("seller-conn"), calls[1].channel)
	assert.Equal(t, "agent_to_seller", calls[1].payload["type"])
	assert.Equal(t, "mediated reply", calls[1].payload["message"])
}

func TestSubmitPartyMessagePromptCarriesBudget(t *testing.T) {
	f := newMediationFixture(t)

	budget := decimal.NewFromInt(35)
	msg := buyerMsg("best I can do")
	msg.Budget = &budget
	require.NoError(t, f.service.SubmitPartyMessage(context.Background(), msg))

	assert.Contains(t, f.generator.lastPrompt, "35")
	assert.Contains(t, f.generator.lastPrompt, "best I can do")
	assert.Contains(t, f.generator.lastPrompt, "VTE")
}
