package history

import (
	"encoding/json"
	"fmt"

	"go-aviator/internal/game"
	"go-aviator/internal/job"
	"go-aviator/internal/lib/logger/sl"

	"github.com/go-redis/redis/v7"
	"golang.org/x/exp/slog"
)

const (
	historyKey = "aviator:crash_history"
	maxEntries = 100
)

// Store keeps the rolling list of recent crash results in redis so clients
// and the verify flow can read past rounds without touching the database.
type Store struct {
	client *redis.Client
	log    *slog.Logger
}

func NewStore(log *slog.Logger, addr, password string, db int) (*Store, error) {
	const op = "history.NewStore"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{client: client, log: log}, nil
}

// Record implements game.HistoryRecorder. The write happens on the job
// queue so round settlement never waits on redis.
func (s *Store) Record(result game.RoundResult) {
	job.Dispatch(&recordJob{store: s, result: result}, 0)
}

type recordJob struct {
	store  *Store
	result game.RoundResult
}

func (j *recordJob) Execute() {
	if err := j.store.push(j.result); err != nil {
		j.store.log.Error("failed to record round history", sl.Err(err))
	}
}

func (s *Store) push(result game.RoundResult) error {
	const op = "history.Store.push"

	bs, err := json.Marshal(&result)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(historyKey, bs)
	pipe.LTrim(historyKey, 0, maxEntries-1)

	if _, err = pipe.Exec(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Recent returns up to limit finished rounds, newest first.
func (s *Store) Recent(limit int) ([]game.RoundResult, error) {
	const op = "history.Store.Recent"

	if limit <= 0 || limit > maxEntries {
		limit = maxEntries
	}

	raw, err := s.client.LRange(historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	results := make([]game.RoundResult, 0, len(raw))

	for _, item := range raw {
		var result game.RoundResult

		if err = json.Unmarshal([]byte(item), &result); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		results = append(results, result)
	}

	return results, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
