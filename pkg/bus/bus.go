// Package bus decouples channels from the assistant loop: channels push
// user input in, the assistant pushes replies out.
package bus

// InboundMessage is user input arriving from a channel.
type InboundMessage struct {
	SessionID string
	SenderID  string
	Content   string
}

// OutboundMessage is an assistant reply heading back to a channel.
type OutboundMessage struct {
	SessionID string
	Content   string
}

type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, 64),
		outbound: make(chan OutboundMessage, 64),
	}
}

func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

func (b *MessageBus) Inbound() <-chan InboundMessage {
	return b.inbound
}

func (b *MessageBus) Outbound() <-chan OutboundMessage {
	return b.outbound
}
