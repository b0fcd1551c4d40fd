package pubsub

import "github.com/tdex-network/watchdescriptor/internal/core/ports"

type WebhookInfo struct {
	Id        string `json:"id"`
	Topic     string `json:"topic"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

func newWebhookInfo(sub ports.Subscription) WebhookInfo {
	return WebhookInfo{
		Id:        sub.Id(),
		Topic:     sub.Topic(),
		Endpoint:  sub.NotifyAt(),
		IsSecured: sub.IsSecured(),
	}
}
