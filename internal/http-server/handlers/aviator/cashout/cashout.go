package cashout

import (
	"errors"
	"net/http"

	"go-aviator/internal/game"
	resp "go-aviator/internal/lib/api/response"
	"go-aviator/internal/lib/converter"
	"go-aviator/internal/lib/logger/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type Request struct {
	UserUUID string `json:"user_uuid" validate:"required,uuid4"`
	BetUUID  string `json:"bet_uuid" validate:"required,uuid4"`
}

type Response struct {
	resp.Response
	BetUUID    string  `json:"bet_uuid"`
	BetStatus  string  `json:"bet_status"`
	Multiplier string  `json:"multiplier"`
	Payout     float64 `json:"payout"`
}

type CashoutExecutor interface {
	Cashout(userUUID string, betID uuid.UUID) (game.Resolution, error)
}

type Cashout struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    CashoutExecutor
}

func New(log *slog.Logger, engine CashoutExecutor) *Cashout {
	return &Cashout{
		log:       log,
		validator: validator.New(),
		engine:    engine,
	}
}

// New handles the manual cash-out request. The call is idempotent: once a
// bet is terminal, repeated requests return the recorded outcome.
func (c *Cashout) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.aviator.cashout.New"

		var (
			err error
			req Request
			res game.Resolution
		)

		log := c.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		err = render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err = c.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		betUUID, err := uuid.Parse(req.BetUUID)
		if err != nil {
			render.JSON(w, r, resp.Error("invalid bet uuid", http.StatusBadRequest))

			return
		}

		res, err = c.engine.Cashout(req.UserUUID, betUUID)
		if err != nil {
			log.Info("cash-out rejected", sl.String("bet_uuid", req.BetUUID), sl.Err(err))

			render.JSON(w, r, cashoutError(err))

			return
		}

		log.Info("cash-out resolved",
			sl.String("bet_uuid", req.BetUUID),
			sl.String("status", res.StatusName),
			slog.Int64("payout", res.Payout))

		render.JSON(w, r, Response{
			Response:   resp.OK(),
			BetUUID:    res.BetID.String(),
			BetStatus:  res.StatusName,
			Multiplier: res.Multiplier.StringFixed(2),
			Payout:     converter.CentsToAmount(res.Payout),
		})
	}
}

func cashoutError(err error) resp.Response {
	switch {
	case errors.Is(err, game.ErrBetNotFound):
		return resp.Error("bet not found", http.StatusNotFound)
	case errors.Is(err, game.ErrNoActiveRound), errors.Is(err, game.ErrRoundNotFlying):
		return resp.Error("round is not in flight", http.StatusConflict)
	case errors.Is(err, game.ErrEngineHalted):
		return resp.Error("game is unavailable", http.StatusServiceUnavailable)
	}

	return resp.Error("failed to cash out", http.StatusInternalServerError)
}
