package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

// idempotent кэширует ответ POST /orders по ключу из заголовка Idempotency-Key.
// Повтор с тем же ключом и телом получает сохранённый ответ, с другим телом: 409.
// Без заголовка запрос обрабатывается как обычно.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		if rawKey == "" || s.deps.Idempotency == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, errMalformedBody.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		actor := actorFrom(r.Context())
		// Ключи разных пользователей не пересекаются.
		key := actor.UserID + ":" + rawKey
		hash := requestHash(r.Method, r.URL.Path, actor.UserID, body)
		logger := s.logger.WithFields(log.Fields{
			"idempotency_key": rawKey,
			"user_id":         actor.UserID,
			"request_id":      middleware.GetReqID(r.Context()),
		})

		record, err := s.deps.Idempotency.CreateProcessing(r.Context(), key, hash, s.now().Add(domain.IdempotencyTTL))
		if err != nil {
			s.replay(w, r, logger, record, err)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		var captured bytes.Buffer
		ww.Tee(&captured)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		store := s.deps.Idempotency.MarkDone
		if domain.CompletionStatus(status) == domain.IdempotencyStatusFailed {
			store = s.deps.Idempotency.MarkFailed
		}
		// Клиент уже получил ответ; отмена его запроса не должна терять запись.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		defer cancel()
		if err := store(ctx, key, captured.Bytes(), status); err != nil {
			logger.WithError(err).Warn("failed to store idempotent response")
		}
	})
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request, logger *log.Entry, record domain.IdempotencyRecord, createErr error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		s.writeError(w, r, domain.ErrIdempotencyHashMismatch)
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Replayable():
			logger.WithField("status", record.HTTPStatus).Info("replaying cached response")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(record.HTTPStatus)
			_, _ = w.Write(record.ResponseBody)
		case record.Status == domain.IdempotencyStatusProcessing:
			s.writeError(w, r, domain.ErrIdempotencyInProgress)
		default:
			logger.WithField("status", record.Status).Warn("idempotency record has no cached response")
			writeMessage(w, http.StatusInternalServerError, "internal server error")
		}
	default:
		s.writeError(w, r, createErr)
	}
}

// requestHash считает отпечаток из метода, пути, пользователя и тела.
func requestHash(method, path, userID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
