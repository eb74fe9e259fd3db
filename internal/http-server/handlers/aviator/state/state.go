package state

import (
	"net/http"

	"go-aviator/internal/game"
	resp "go-aviator/internal/lib/api/response"

	"github.com/go-chi/render"
	"golang.org/x/exp/slog"
)

type Response struct {
	resp.Response
	State game.Snapshot `json:"state"`
}

type Snapshotter interface {
	Snapshot() game.Snapshot
}

type State struct {
	log    *slog.Logger
	engine Snapshotter
}

func New(log *slog.Logger, engine Snapshotter) *State {
	return &State{log: log, engine: engine}
}

// New returns the current round as seen from outside: the commitment during
// betting and flight, the seed only after the crash reveal.
func (s *State) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, Response{
			Response: resp.OK(),
			State:    s.engine.Snapshot(),
		})
	}
}
