package place_bet

import (
	"errors"
	"net/http"

	"go-aviator/internal/game"
	"go-aviator/internal/ledger"
	resp "go-aviator/internal/lib/api/response"
	"go-aviator/internal/lib/converter"
	"go-aviator/internal/lib/logger/sl"
	"go-aviator/internal/model"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

type Request struct {
	UserUUID    string  `json:"user_uuid" validate:"required,uuid4"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	AutoCashOut float64 `json:"auto_cash_out_at,omitempty" validate:"omitempty,gte=1.01"`
}

type Response struct {
	resp.Response
	BetUUID string `json:"bet_uuid,omitempty"`
	RoundID uint64 `json:"round_id,omitempty"`
}

type BetPlacer interface {
	PlaceBet(userUUID string, stake int64, autoCashout decimal.Decimal) (*game.Bet, error)
}

type UserFinder interface {
	FindUserByUUID(userUUID string) (*model.User, error)
}

type Bet struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    BetPlacer
	userRep   UserFinder
}

func NewBet(log *slog.Logger, engine BetPlacer, userRep UserFinder) *Bet {
	return &Bet{
		log:       log,
		validator: validator.New(),
		engine:    engine,
		userRep:   userRep,
	}
}

func (b *Bet) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.aviator.bet.place.New"

		var (
			err  error
			req  Request
			user *model.User
			bet  *game.Bet
		)

		log := b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		err = render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err = b.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		user, err = b.userRep.FindUserByUUID(req.UserUUID)
		if err != nil {
			log.Error("failed to find user", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to find user", http.StatusInternalServerError))

			return
		}

		if user == nil {
			render.JSON(w, r, resp.Error("user not found", http.StatusNotFound))

			return
		}

		stake := converter.AmountToCents(req.Amount)

		autoCashout := decimal.Zero
		if req.AutoCashOut > 0 {
			autoCashout = decimal.NewFromFloat(req.AutoCashOut).Truncate(2)
		}

		bet, err = b.engine.PlaceBet(req.UserUUID, stake, autoCashout)
		if err != nil {
			log.Info("bet rejected", sl.String("user_uuid", req.UserUUID), sl.Err(err))

			render.JSON(w, r, placeBetError(err))

			return
		}

		log.Info("bet placed",
			sl.String("bet_uuid", bet.ID.String()),
			sl.Uint64("round_id", bet.RoundID),
			slog.Int64("stake", bet.Stake))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			BetUUID:  bet.ID.String(),
			RoundID:  bet.RoundID,
		})
	}
}

func placeBetError(err error) resp.Response {
	switch {
	case errors.Is(err, game.ErrBettingWindowClosed):
		return resp.Error("betting window is closed", http.StatusConflict)
	case errors.Is(err, game.ErrStakeOutOfRange):
		return resp.Error("stake is out of range", http.StatusBadRequest)
	case errors.Is(err, game.ErrInvalidAutoCashout):
		return resp.Error("auto cash-out target is out of range", http.StatusBadRequest)
	case errors.Is(err, game.ErrAlreadyBet):
		return resp.Error("user already has a bet in this round", http.StatusConflict)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return resp.Error("insufficient balance", http.StatusPaymentRequired)
	case errors.Is(err, game.ErrEngineHalted):
		return resp.Error("game is unavailable", http.StatusServiceUnavailable)
	}

	return resp.Error("failed to place bet", http.StatusInternalServerError)
}
