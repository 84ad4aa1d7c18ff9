package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahmatgani/aruna/pkg/channel"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// Config holds Twilio Messaging credentials and sender identity.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Messenger forwards relay-channel replies through the Twilio Messaging
// REST API. WhatsApp destinations use the "whatsapp:" address scheme.
type Messenger struct {
	cfg    Config
	client messageCreator
}

// NewMessenger creates a Twilio messaging adapter.
func NewMessenger(cfg Config) *Messenger {
	return &Messenger{cfg: cfg}
}

func (m *Messenger) Name() string { return "twilio" }

// Forward sends the reply text to the destination address.
func (m *Messenger) Forward(ctx context.Context, reply channel.Reply) error {
	_ = ctx
	if reply.To == "" {
		return errors.New("destination required")
	}
	if m.cfg.AccountSID == "" || m.cfg.AuthToken == "" {
		return errors.New("missing twilio credentials")
	}
	client := m.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: m.cfg.AccountSID,
			Password: m.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateMessageParams{}
	params.SetTo(address(reply.Channel, reply.To))
	params.SetFrom(address(reply.Channel, m.cfg.From))
	params.SetBody(reply.Text)
	resp, err := client.CreateMessage(params)
	if err != nil {
		return err
	}
	if resp == nil || resp.Sid == nil {
		return fmt.Errorf("missing message sid")
	}
	return nil
}

func address(channelName, number string) string {
	if channelName == "whatsapp" {
		return "whatsapp:" + number
	}
	return number
}
