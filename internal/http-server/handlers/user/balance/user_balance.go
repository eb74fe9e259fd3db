package balance

import (
	"net/http"

	"go-aviator/internal/ledger"
	resp "go-aviator/internal/lib/api/response"
	"go-aviator/internal/lib/converter"
	"go-aviator/internal/lib/logger/sl"
	"go-aviator/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"
)

type Response struct {
	resp.Response
	UserUUID string  `json:"user_uuid"`
	Balance  float64 `json:"balance"`
}

type UserFinder interface {
	FindUserByUUID(userUUID string) (*model.User, error)
}

type Balance struct {
	log       *slog.Logger
	validator *validator.Validate
	wallets   ledger.Ledger
	userRep   UserFinder
}

func New(log *slog.Logger, wallets ledger.Ledger, userRep UserFinder) *Balance {
	return &Balance{
		log:       log,
		validator: validator.New(),
		wallets:   wallets,
		userRep:   userRep,
	}
}

func (b *Balance) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.balance.New"

		log := b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userUUID := chi.URLParam(r, "uuid")

		if err := b.validator.Var(userUUID, "required,uuid4"); err != nil {
			render.JSON(w, r, resp.Error("invalid user uuid", http.StatusBadRequest))

			return
		}

		user, err := b.userRep.FindUserByUUID(userUUID)
		if err != nil {
			log.Error("failed to find user", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to find user", http.StatusInternalServerError))

			return
		}

		if user == nil {
			render.JSON(w, r, resp.Error("user not found", http.StatusNotFound))

			return
		}

		amount, err := b.wallets.Balance(userUUID)
		if err != nil {
			log.Error("failed to read balance", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to read balance", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			UserUUID: userUUID,
			Balance:  converter.CentsToAmount(amount),
		})
	}
}
