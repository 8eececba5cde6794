package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vutran-dev/relay-be/internal/admin/dto"
	"github.com/vutran-dev/relay-be/internal/domain"
	"github.com/vutran-dev/relay-be/internal/job"
)

// ListDeadLetters handles GET /api/v1/dead-letters
// Lists dead-lettered jobs newest first
func (h *DeadLetterHandler) ListDeadLetters(c *gin.Context) {
	var req dto.ListDeadLettersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	entries, err := h.deadLetters.List(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to list dead letters", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list dead letters",
		})
		return
	}

	response := make([]dto.DeadLetterDTO, len(entries))
	for i, entry := range entries {
		response[i] = toDTO(&entry)
	}

	c.JSON(http.StatusOK, dto.ListDeadLettersResponse{
		DeadLetters: response,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
}

// GetDeadLetter handles GET /api/v1/dead-letters/:id
// Returns one dead-letter entry including its full envelope
func (h *DeadLetterHandler) GetDeadLetter(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	entry, err := h.deadLetters.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrDeadLetterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Dead letter not found",
			})
			return
		}
		h.logger.Error("Failed to get dead letter", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get dead letter",
		})
		return
	}

	c.JSON(http.StatusOK, toDTO(entry))
}

// RequeueDeadLetter handles POST /api/v1/dead-letters/:id/requeue
// Re-publishes the original envelope on its source queue with the attempt
// counter reset, then marks the entry replayed. A second requeue of the
// same entry is rejected.
func (h *DeadLetterHandler) RequeueDeadLetter(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	entry, err := h.deadLetters.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrDeadLetterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Dead letter not found",
			})
			return
		}
		h.logger.Error("Failed to get dead letter", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get dead letter",
		})
		return
	}
	if entry.ReplayedAt != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Dead letter already replayed",
		})
		return
	}

	env, err := job.Decode(entry.Envelope)
	if err != nil {
		// Validation dead letters carry envelopes that never parsed;
		// those can only be inspected, not replayed.
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Stored envelope cannot be replayed: " + err.Error(),
		})
		return
	}
	env.Attempt = 0
	env.EnqueuedAt = time.Now().UTC()

	body, err := env.Encode()
	if err != nil {
		h.logger.Error("Failed to encode envelope", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to encode envelope",
		})
		return
	}
	if err := h.queue.Publish(c.Request.Context(), entry.Queue, body); err != nil {
		h.logger.Error("Failed to republish envelope", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to republish envelope",
		})
		return
	}

	if err := h.deadLetters.MarkReplayed(c.Request.Context(), id); err != nil {
		// The job is back on the queue either way; surface the bookkeeping
		// failure so operators know the entry may show as replayable.
		h.logger.Error("Failed to mark dead letter replayed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Requeued but failed to mark replayed",
		})
		return
	}

	h.logger.Info("Dead letter requeued",
		slog.Int64("dead_letter_id", id),
		slog.String("queue", entry.Queue),
		slog.String("correlation_id", entry.CorrelationID),
	)

	c.JSON(http.StatusOK, dto.RequeueResponse{
		ID:            id,
		Queue:         entry.Queue,
		CorrelationID: entry.CorrelationID,
		Status:        "requeued",
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func toDTO(entry *domain.DeadLetter) dto.DeadLetterDTO {
	out := dto.DeadLetterDTO{
		ID:            entry.ID,
		Queue:         entry.Queue,
		JobType:       entry.JobType,
		CorrelationID: entry.CorrelationID,
		Envelope:      entry.Envelope,
		FailureType:   entry.FailureType,
		Attempts:      entry.Attempts,
		LastError:     entry.LastError,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.ReplayedAt != nil {
		out.ReplayedAt = entry.ReplayedAt.Format(time.RFC3339)
	}
	return out
}
