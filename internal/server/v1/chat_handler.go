package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/chat-relay/internal/relay"
	"github.com/nulzo/chat-relay/internal/server/validator"
	"github.com/nulzo/chat-relay/pkg/api"
)

type ChatHandler struct {
	service relay.Service
}

func NewChatHandler(service relay.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// bindChat decodes the request body. An empty body is an empty request, so
// the relay reports the missing prompt itself.
func bindChat(c *gin.Context) (*api.ChatRequest, error) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &req, nil
}

// Stream relays one answer as server-sent events.
//
// POST /api/chat/stream
func (h *ChatHandler) Stream(c *gin.Context) {
	var events <-chan relay.Event

	req, err := bindChat(c)
	if err != nil {
		// the status is always 200, failures travel in band
		events = single(relay.ErrorEvent(relay.InvalidBody(err)))
	} else {
		events = h.service.Stream(c.Request.Context(), req)
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		if err := writeEvent(w, ev); err != nil {
			return false
		}
		return !ev.Terminal()
	})
}

func writeEvent(w io.Writer, ev relay.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func single(ev relay.Event) <-chan relay.Event {
	ch := make(chan relay.Event, 1)
	ch <- ev
	close(ch)
	return ch
}

// Chat returns the whole answer as one JSON document.
//
// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	req, err := bindChat(c)
	if err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(problemFor(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// problemFor maps relay failures onto RFC 9457 problems, keeping the
// error/details/message members the frontend reads.
func problemFor(err error) *api.Problem {
	var relayErr *relay.Error
	if !errors.As(err, &relayErr) {
		return api.InternalError("Failed to process chat request", err)
	}

	var opts []api.ProblemOption
	if relayErr.Details != "" {
		opts = append(opts, api.WithExtension("details", relayErr.Details))
	}
	if relayErr.Hint != "" {
		opts = append(opts, api.WithExtension("message", relayErr.Hint))
	}

	switch relayErr.Kind {
	case relay.KindValidation, relay.KindUnsupportedMode:
		return api.BadRequestError(relayErr.Message, append(opts, api.WithLog(relayErr))...)
	case relay.KindUpstream:
		return api.UpstreamError(relayErr.HTTPStatus(), relayErr.Message, relayErr, opts...)
	default:
		return api.InternalError(relayErr.Message, relayErr, opts...)
	}
}
