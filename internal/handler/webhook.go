package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/courseloop/coursepay/internal/gateway/paystack"
)

// maxWebhookBody bounds how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// Webhook handles POST /webhook/paystack. The signature check over the
// exact raw body is the sole trust boundary: a mismatch is rejected before
// any dispatch. Everything past it responds 200 — including idempotent
// no-ops and settlement errors — because a non-200 only provokes another
// delivery of an event the settlement engine already handles idempotently.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !paystack.VerifySignature(h.webhookSecret, body, r.Header.Get(paystack.SignatureHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, reference, err := parseWebhookEnvelope(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}

	switch event {
	case "charge.success":
		result, err := h.payments.VerifyAndSettle(r.Context(), reference)
		if err != nil {
			lg.Error("webhook settlement failed",
				zap.String("reference", reference),
				zap.Error(err),
			)
			break
		}
		lg.Info("webhook settled",
			zap.String("reference", reference),
			zap.String("outcome", result.Message()),
		)

	case "charge.failed", "charge.dispute":
		if err := h.payments.RecordFailure(r.Context(), reference); err != nil {
			lg.Error("webhook failure recording failed",
				zap.String("reference", reference),
				zap.Error(err),
			)
		}

	default:
		// Unknown event types are accepted and ignored so new gateway
		// events do not trigger retry storms.
		lg.Info("unhandled webhook event", zap.String("event", event))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "webhook processed"})
}

// parseWebhookEnvelope pulls event and data.reference out of the gateway's
// envelope without decoding the rest of the payload.
func parseWebhookEnvelope(body []byte) (event, reference string, err error) {
	d := jx.DecodeBytes(body)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "event":
			v, err := d.Str()
			if err != nil {
				return err
			}
			event = v
			return nil
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "reference" {
					return d.Skip()
				}
				v, err := d.Str()
				if err != nil {
					return err
				}
				reference = v
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", "", errors.Wrap(err, "decode envelope")
	}
	if event == "" {
		return "", "", errors.New("missing event type")
	}
	return event, reference, nil
}
