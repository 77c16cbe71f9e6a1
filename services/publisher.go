package services

import (
	pubnub "github.com/pubnub/go"
)

// Publisher pushes an outbound event to a connection channel. Narrowed
// to an interface so the mediation pipeline and gateway can be tested
// without a live PubNub key.
type Publisher interface {
	Publish(channel string, message map[string]any) error
}

// ConnChannel is the per-connection outbound channel name.
func ConnChannel(conn string) string {
	return "conn-" + conn
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) Publish(channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}
