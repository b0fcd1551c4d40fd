package webhookpubsub

import "errors"

var (
	// ErrNullDatastore specifies that a datastore is required.
	ErrNullDatastore = errors.New("datastore must not be null")
	// ErrMissingTopic is returned when subscribing without a topic.
	ErrMissingTopic = errors.New("missing topic")
	// ErrInvalidEndpoint is returned when the webhook endpoint is not a valid
	// absolute URL.
	ErrInvalidEndpoint = errors.New("invalid webhook endpoint, must be a valid URI")
)
