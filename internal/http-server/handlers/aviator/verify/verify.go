package verify

import (
	"fmt"
	"net/http"
	"time"

	"go-aviator/internal/fair"
	resp "go-aviator/internal/lib/api/response"
	"go-aviator/internal/lib/logger/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/slog"
)

type Request struct {
	RoundID    uint64 `json:"round_id" validate:"required"`
	Seed       string `json:"seed" validate:"required,len=64,hexadecimal"`
	Commitment string `json:"commitment" validate:"required,len=64,hexadecimal"`
}

type Response struct {
	resp.Response
	Valid      bool   `json:"valid"`
	CrashPoint string `json:"crash_point,omitempty"`
}

// Verify lets players check a finished round: the revealed seed must hash
// to the pre-round commitment, and the crash point must follow from the
// seed and round number. Results are pure functions of the input, so they
// are cached.
type Verify struct {
	log       *slog.Logger
	validator *validator.Validate
	source    *fair.Source
	cache     *cache.Cache
}

func New(log *slog.Logger, source *fair.Source) *Verify {
	return &Verify{
		log:       log,
		validator: validator.New(),
		source:    source,
		cache:     cache.New(30*time.Minute, time.Hour),
	}
}

func (v *Verify) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.aviator.verify.New"

		var (
			err error
			req Request
		)

		log := v.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		err = render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err = v.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		cacheKey := fmt.Sprintf("%d:%s:%s", req.RoundID, req.Seed, req.Commitment)

		if cached, found := v.cache.Get(cacheKey); found {
			render.JSON(w, r, cached.(Response))

			return
		}

		response := Response{Response: resp.OK()}

		if fair.Verify(req.Seed, req.Commitment) {
			response.Valid = true
			response.CrashPoint = v.source.CrashPoint(req.Seed, req.RoundID).StringFixed(2)
		}

		v.cache.Set(cacheKey, response, cache.DefaultExpiration)

		render.JSON(w, r, response)
	}
}
