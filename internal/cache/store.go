package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperr "seatkeeper/internal/errors"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings for the hold store
type Config struct {
	Addr     string
	Password string
	DB       int
}

// HoldStore is the authoritative store for seat holds. All hold state lives
// in Redis; the struct only carries the client and key layout.
type HoldStore struct {
	client *redis.Client
	db     int
}

// NewHoldStore connects to Redis and verifies the connection.
func NewHoldStore(cfg Config) (*HoldStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &HoldStore{client: rdb, db: cfg.DB}, nil
}

// NewHoldStoreFromClient wraps an existing client.
func NewHoldStoreFromClient(client *redis.Client) *HoldStore {
	return &HoldStore{client: client, db: client.Options().DB}
}

// Ping checks that Redis is reachable.
func (s *HoldStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *HoldStore) Close() error {
	return s.client.Close()
}

// Key layout
const (
	seatKeyPrefix    = "seat:hold:"
	userKeyPrefix    = "seat:user:"
	indexKeyPrefix   = "seat:index:"
	sessionKeyPrefix = "seat:session:"
	activeKeyPrefix  = "seat:active:"
)

func seatPrefix(showtimeID int64) string {
	return seatKeyPrefix + strconv.FormatInt(showtimeID, 10) + ":"
}

func seatKey(showtimeID, seatID int64) string {
	return seatPrefix(showtimeID) + strconv.FormatInt(seatID, 10)
}

func userKey(userID, showtimeID int64) string {
	return fmt.Sprintf("%s%d:%d", userKeyPrefix, userID, showtimeID)
}

func indexKey(showtimeID int64) string {
	return indexKeyPrefix + strconv.FormatInt(showtimeID, 10)
}

func sessionKey(userID, showtimeID int64) string {
	return fmt.Sprintf("%s%d:%d", sessionKeyPrefix, userID, showtimeID)
}

func activeKey(userID int64) string {
	return activeKeyPrefix + strconv.FormatInt(userID, 10)
}

// ParseSessionKey extracts user and showtime ids from a session marker key.
func ParseSessionKey(key string) (userID, showtimeID int64, ok bool) {
	return parsePair(key, sessionKeyPrefix)
}

func parsePair(key, prefix string) (int64, int64, bool) {
	rest, found := strings.CutPrefix(key, prefix)
	if !found {
		return 0, 0, false
	}
	a, b, found := strings.Cut(rest, ":")
	if !found {
		return 0, 0, false
	}
	first, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	second, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return first, second, true
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
}
