package httpinterface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/application"
	"github.com/tdex-network/watchdescriptor/internal/core/application/pubsub"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

const maxBodySize = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// WebhookService is the subset of the webhook app service exposed over HTTP.
type WebhookService interface {
	AddWebhook(ctx context.Context, topic, endpoint, secret string) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, topic string) ([]pubsub.WebhookInfo, error)
}

type watchDescriptorRequest struct {
	Descriptor       string  `json:"descriptor"`
	ChangeDescriptor *string `json:"change_descriptor"`
	Birthday         *uint32 `json:"birthday"`
	Gap              *uint32 `json:"gap"`
	Network          *string `json:"network"`
}

type watchDescriptorReply struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type blockAddedRequest struct {
	BlockAdded *struct {
		Hash   string `json:"hash"`
		Height uint32 `json:"height"`
	} `json:"block_added"`
}

type addWebhookRequest struct {
	Topic    string `json:"topic"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret"`
}

type webhookReply struct {
	Id        string `json:"id"`
	Topic     string `json:"topic"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

type messageReply struct {
	Message string `json:"message"`
}

type errorReply struct {
	Error string `json:"error"`
}

type handler struct {
	watchSvc      application.WatchService
	webhookSvc    WebhookService
	notifications http.Handler

	router  http.Handler
	rescans *sync.WaitGroup
}

// NewHandler returns the router serving the REST API of the daemon. The
// notifications handler, if defined, serves the websocket stream of coin
// movements.
func NewHandler(
	watchSvc application.WatchService, webhookSvc WebhookService,
	notifications http.Handler,
) http.Handler {
	return newHandler(watchSvc, webhookSvc, notifications)
}

func newHandler(
	watchSvc application.WatchService, webhookSvc WebhookService,
	notifications http.Handler,
) *handler {
	h := &handler{
		watchSvc:      watchSvc,
		webhookSvc:    webhookSvc,
		notifications: notifications,
		rescans:       &sync.WaitGroup{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/watchdescriptor", h.watchDescriptor)
	mux.HandleFunc("GET /v1/listdescriptors", h.listDescriptors)
	mux.HandleFunc("POST /v1/deletedescriptor", h.deleteDescriptor)
	mux.HandleFunc("POST /v1/blockadded", h.blockAdded)
	if webhookSvc != nil {
		mux.HandleFunc("POST /v1/webhooks", h.addWebhook)
		mux.HandleFunc("DELETE /v1/webhooks/{id}", h.removeWebhook)
		mux.HandleFunc("GET /v1/webhooks", h.listWebhooks)
	}
	if notifications != nil {
		mux.Handle("GET /v1/notifications", notifications)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	h.router = logRequests(mux)
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// waitRescans blocks until all rescans started by block added requests are
// done.
func (h *handler) waitRescans() {
	h.rescans.Wait()
}

func (h *handler) watchDescriptor(w http.ResponseWriter, r *http.Request) {
	var req watchDescriptorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Descriptor) <= 0 {
		writeError(w, fmt.Errorf("%w: missing descriptor", errInvalidBody))
		return
	}

	name, err := h.watchSvc.WatchDescriptor(r.Context(), application.WatchDescriptorParams{
		Descriptor:       req.Descriptor,
		ChangeDescriptor: req.ChangeDescriptor,
		Birthday:         req.Birthday,
		Gap:              req.Gap,
		Network:          req.Network,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, watchDescriptorReply{
		Name:    name,
		Message: fmt.Sprintf("Wallet with checksum %s successfully added", name),
	})
}

func (h *handler) listDescriptors(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.watchSvc.ListDescriptors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

// deleteDescriptor accepts the name of the wallet either as named or as
// positional argument.
func (h *handler) deleteDescriptor(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %s", errInvalidBody, err))
		return
	}

	name, err := parseDeleteArgs(buf)
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.watchSvc.DeleteDescriptor(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageReply{msg})
}

func (h *handler) blockAdded(w http.ResponseWriter, r *http.Request) {
	var req blockAddedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.BlockAdded == nil || len(req.BlockAdded.Hash) <= 0 {
		writeError(w, fmt.Errorf("%w: missing block_added", errInvalidBody))
		return
	}

	block := application.BlockAdded{
		Hash:   req.BlockAdded.Hash,
		Height: req.BlockAdded.Height,
	}
	// The rescan outlives the request, failures are only logged.
	h.rescans.Add(1)
	go func() {
		defer h.rescans.Done()
		if err := h.watchSvc.OnBlockAdded(context.Background(), block); err != nil {
			log.WithError(err).WithField("height", block.Height).Warn(
				"failed to rescan wallets on block added",
			)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) addWebhook(w http.ResponseWriter, r *http.Request) {
	var req addWebhookRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.webhookSvc.AddWebhook(r.Context(), req.Topic, req.Endpoint, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *handler) removeWebhook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.webhookSvc.RemoveWebhook(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageReply{fmt.Sprintf("Removed webhook: %s", id)})
}

func (h *handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhookSvc.ListWebhooks(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		writeError(w, err)
		return
	}

	reply := make([]webhookReply, 0, len(hooks))
	for _, hook := range hooks {
		reply = append(reply, webhookReply{
			Id:        hook.Id,
			Topic:     hook.Topic,
			Endpoint:  hook.Endpoint,
			IsSecured: hook.IsSecured,
		})
	}
	writeJSON(w, http.StatusOK, reply)
}

func parseDeleteArgs(buf []byte) (string, error) {
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(buf, &named); err == nil && len(named.Name) > 0 {
		return named.Name, nil
	}

	var positional []string
	if err := json.Unmarshal(buf, &positional); err == nil &&
		len(positional) == 1 && len(positional[0]) > 0 {
		return positional[0], nil
	}

	return "", fmt.Errorf("%w: expected {\"name\"} or [\"name\"]", errInvalidBody)
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(
		io.LimitReader(r.Body, maxBodySize),
	).Decode(dst); err != nil {
		return fmt.Errorf("%w: %s", errInvalidBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("internal error")
	}
	writeJSON(w, status, errorReply{err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, domain.ErrMalformedDescriptor),
		errors.Is(err, domain.ErrNetworkMismatch),
		errors.Is(err, pubsub.ErrInvalidTopic),
		errors.Is(err, pubsub.ErrInvalidEndpoint):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, pubsub.ErrWebhookNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrCollaboratorFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/metrics") {
			log.Debugf("http: %s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
