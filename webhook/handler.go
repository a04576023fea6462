package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atendai/atendai/cache"
	"github.com/atendai/atendai/errors"
	"github.com/atendai/atendai/internal/mylog"
	"github.com/atendai/atendai/messenger"
)

const (
	dedupKeyPrefix = "webhook:dedup:"

	// apologyFormat is what the end user sees when the assistant run
	// fails; the reference id lets support correlate it with the logs.
	apologyFormat = "Desculpe, estou com uma instabilidade no momento. 😔 Tente novamente em instantes. (ref: %s)"

	processTimeout = 2 * time.Minute
)

type (
	// Asker is the orchestrator surface the handler depends on.
	Asker interface {
		Ask(ctx context.Context, userID, message string, metadata map[string]string) (string, error)
	}

	Handler struct {
		secret   string
		strict   bool
		asker    Asker
		sender   messenger.Sender
		store    cache.Store
		logger   *mylog.Logger
		baseCtx  context.Context
		dispatch func(fn func())
	}
)

func NewHandler(secret string, strict bool, asker Asker, sender messenger.Sender, store cache.Store, logger *mylog.Logger) *Handler {
	return &Handler{
		secret:  secret,
		strict:  strict,
		asker:   asker,
		sender:  sender,
		store:   store,
		logger:  logger,
		baseCtx: context.Background(),
		dispatch: func(fn func()) {
			go fn()
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":    "error",
			"error":     "failed to read body",
			"requestId": requestID,
		})
		return
	}

	if !h.authenticate(r, body, requestID) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"status":    "error",
			"error":     "invalid signature",
			"requestId": requestID,
		})
		return
	}

	ev, err := Normalize(body)
	if err != nil {
		var unrec *UnrecognizedError
		keys := []string{}
		if errors.As(err, &unrec) && unrec.Keys != nil {
			keys = unrec.Keys
		}
		h.logger.Warn("unrecognized webhook payload", "request_id", requestID, "received_keys", keys)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":       "error",
			"error":        "unrecognized payload",
			"receivedKeys": keys,
			"requestId":    requestID,
		})
		return
	}

	if !ev.Relevant() {
		h.logger.Debug("webhook ignored", "request_id", requestID, "shape", ev.Shape, "from_me", ev.FromMe)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ignored",
			"requestId": requestID,
		})
		return
	}

	messageID := ev.MessageID
	if messageID == "" {
		messageID = requestID
	}

	if dup, err := h.isDuplicate(r.Context(), messageID); err == nil && dup {
		h.logger.Info("duplicate webhook delivery", "request_id", requestID, "message_id", messageID)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "duplicate",
			"requestId": requestID,
			"messageId": messageID,
		})
		return
	}

	// The caller never waits for the assistant: accept now, process async.
	h.dispatch(func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("webhook processing panicked", "request_id", requestID, "panic", rec)
			}
		}()
		h.process(ev, messageID, requestID)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "accepted",
		"requestId":       requestID,
		"messageId":       messageID,
		"processingAsync": true,
	})
}

// authenticate verifies the HMAC-SHA256 signature when a shared secret is
// configured. A missing header is tolerated unless strict mode is on; the
// upstream sender is known to omit it.
func (h *Handler) authenticate(r *http.Request, body []byte, requestID string) bool {
	if h.secret == "" {
		return true
	}

	signature := r.Header.Get("x-signature")
	if signature == "" {
		signature = r.Header.Get("signature")
	}
	if signature == "" {
		if h.strict {
			h.logger.Warn("webhook rejected: signature missing in strict mode", "request_id", requestID)
			return false
		}
		h.logger.Warn("webhook without signature accepted (lenient mode)", "request_id", requestID)
		return true
	}

	signature = strings.TrimPrefix(signature, "sha256=")
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		h.logger.Warn("webhook rejected: signature mismatch", "request_id", requestID)
		return false
	}
	return true
}

func (h *Handler) isDuplicate(ctx context.Context, messageID string) (bool, error) {
	_, ok, err := h.store.Get(ctx, dedupKeyPrefix+messageID)
	return ok, err
}

// process runs the assistant and delivers the reply. Only a successfully
// processed message is recorded in the dedup cache, so a genuine retry of a
// failed one can still succeed.
func (h *Handler) process(ev *Event, messageID, requestID string) {
	ctx, cancel := context.WithTimeout(h.baseCtx, processTimeout)
	defer cancel()

	userID := ev.UserID()
	if userID == "" {
		userID = uuid.NewString()
		h.logger.Warn("no stable user id in payload, conversation continuity lost",
			"request_id", requestID, "fallback_id", userID)
	}

	reply, err := h.asker.Ask(ctx, userID, ev.MessageBody, map[string]string{
		"request_id":   requestID,
		"message_id":   messageID,
		"display_name": ev.DisplayName,
	})

	number := PhoneDigits(ev.SenderIdentifier)
	if number == "" {
		h.logger.Error("no contact number to reply to", "request_id", requestID, "user_id", userID)
		return
	}

	if err != nil {
		h.logger.Error("assistant run failed", "request_id", requestID, "user_id", userID, "error", err)
		apology := fmt.Sprintf(apologyFormat, requestID)
		if sendErr := h.sender.Send(ctx, number, apology); sendErr != nil {
			h.logger.Error("failed to deliver apology", "request_id", requestID, "error", sendErr)
		}
		return
	}

	if err := h.sender.Send(ctx, number, reply); err != nil {
		h.logger.Error("failed to deliver reply", "request_id", requestID, "error", err)
		return
	}

	if err := h.store.Set(ctx, dedupKeyPrefix+messageID, requestID, cache.DedupTTL); err != nil {
		h.logger.Warn("failed to record dedup key", "request_id", requestID, "error", err)
	}

	h.logger.Info("reply delivered", "request_id", requestID, "user_id", userID, "message_id", messageID)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
