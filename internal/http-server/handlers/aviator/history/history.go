package history

import (
	"net/http"
	"strconv"

	"go-aviator/internal/game"
	resp "go-aviator/internal/lib/api/response"
	"go-aviator/internal/lib/logger/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"
)

const defaultLimit = 20

type Response struct {
	resp.Response
	Rounds []game.RoundResult `json:"rounds"`
}

type RecentReader interface {
	Recent(limit int) ([]game.RoundResult, error)
}

type History struct {
	log   *slog.Logger
	store RecentReader
}

func New(log *slog.Logger, store RecentReader) *History {
	return &History{log: log, store: store}
}

func (h *History) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.aviator.history.New"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				render.JSON(w, r, resp.Error("invalid limit", http.StatusBadRequest))

				return
			}

			limit = parsed
		}

		rounds, err := h.store.Recent(limit)
		if err != nil {
			log.Error("failed to read round history", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to read round history", http.StatusInternalServerError))

			return
		}

		if rounds == nil {
			rounds = []game.RoundResult{}
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Rounds:   rounds,
		})
	}
}
