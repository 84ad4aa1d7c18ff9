package twilio

import (
	"context"
	"errors"
	"testing"

	"github.com/rahmatgani/aruna/pkg/channel"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type stubCreator struct {
	last *api.CreateMessageParams
	sid  string
	err  error
}

func (s *stubCreator) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	s.last = params
	if s.err != nil {
		return nil, s.err
	}
	return &api.ApiV2010Message{Sid: &s.sid}, nil
}

func TestMessengerForward(t *testing.T) {
	stub := &stubCreator{sid: "SM123"}
	m := NewMessenger(Config{AccountSID: "AC1", AuthToken: "token", From: "+200"})
	m.client = stub

	err := m.Forward(context.Background(), channel.Reply{Channel: "sms", To: "+100", Text: "order received"})
	if err != nil {
		t.Fatalf("forward error: %v", err)
	}
	if stub.last == nil || stub.last.To == nil || *stub.last.To != "+100" {
		t.Fatalf("expected To param")
	}
	if stub.last.From == nil || *stub.last.From != "+200" {
		t.Fatalf("expected From param")
	}
	if stub.last.Body == nil || *stub.last.Body != "order received" {
		t.Fatalf("expected Body param")
	}
}

func TestMessengerWhatsAppAddressScheme(t *testing.T) {
	stub := &stubCreator{sid: "SM999"}
	m := NewMessenger(Config{AccountSID: "AC1", AuthToken: "token", From: "+200"})
	m.client = stub

	err := m.Forward(context.Background(), channel.Reply{Channel: "whatsapp", To: "+100", Text: "hi"})
	if err != nil {
		t.Fatalf("forward error: %v", err)
	}
	if stub.last.To == nil || *stub.last.To != "whatsapp:+100" {
		t.Fatalf("expected whatsapp address scheme, got %v", stub.last.To)
	}
	if stub.last.From == nil || *stub.last.From != "whatsapp:+200" {
		t.Fatalf("expected whatsapp sender scheme, got %v", stub.last.From)
	}
}

func TestMessengerRequiresDestination(t *testing.T) {
	m := NewMessenger(Config{AccountSID: "AC1", AuthToken: "token"})
	if err := m.Forward(context.Background(), channel.Reply{Channel: "sms"}); err == nil {
		t.Fatalf("expected error for empty destination")
	}
}

func TestMessengerRequiresCredentials(t *testing.T) {
	m := NewMessenger(Config{})
	if err := m.Forward(context.Background(), channel.Reply{Channel: "sms", To: "+100"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestMessengerPropagatesAPIError(t *testing.T) {
	stub := &stubCreator{err: errors.New("twilio down")}
	m := NewMessenger(Config{AccountSID: "AC1", AuthToken: "token", From: "+200"})
	m.client = stub
	if err := m.Forward(context.Background(), channel.Reply{Channel: "sms", To: "+100"}); err == nil {
		t.Fatalf("expected API error to surface")
	}
}
