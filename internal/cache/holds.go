package cache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AcquireResult is the outcome of a single seat acquisition attempt
type AcquireResult int

const (
	Acquired AcquireResult = iota
	Taken
	AlreadyHeld
	LimitReached
	SwitchRequired
)

func (r AcquireResult) String() string {
	switch r {
	case Acquired:
		return "acquired"
	case Taken:
		return "taken"
	case AlreadyHeld:
		return "already_held"
	case LimitReached:
		return "limit_reached"
	case SwitchRequired:
		return "switch_required"
	default:
		return "unknown"
	}
}

// HoldTimings are the TTLs applied by Acquire
type HoldTimings struct {
	TTL   time.Duration
	Grace time.Duration
}

// acquireScript is the only path that creates a seat hold.
//
// KEYS: seat, user set, showtime index, session marker, active showtime
// ARGV: user id, seat id, hold ttl ms, set ttl ms, limit, seat key prefix, showtime id
//
// Returns 1 acquired, 0 held by someone else, 2 already held by caller,
// -1 limit reached, -2 the caller still holds seats of another showtime.
// The limit is checked before the seat owner, so a caller at the limit is
// told so even when the seat is taken.
var acquireScript = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if owner == ARGV[1] then
  return 2
end

local active = redis.call('GET', KEYS[5])
if active and active ~= ARGV[7] then
  return -2
end

local held = 0
for _, m in ipairs(redis.call('SMEMBERS', KEYS[2])) do
  if redis.call('GET', ARGV[6] .. m) == ARGV[1] then
    held = held + 1
  else
    redis.call('SREM', KEYS[2], m)
  end
end
if held >= tonumber(ARGV[5]) then
  return -1
end
if owner then
  return 0
end

if not redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[3]) then
  return 0
end

redis.call('SADD', KEYS[2], ARGV[2])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
redis.call('SADD', KEYS[3], ARGV[2])
redis.call('SET', KEYS[4], '1', 'PX', ARGV[3])
redis.call('SET', KEYS[5], ARGV[7], 'PX', ARGV[4])
for _, m in ipairs(redis.call('SMEMBERS', KEYS[2])) do
  redis.call('PEXPIRE', ARGV[6] .. m, ARGV[3])
end
return 1
`)

// releaseScript removes holds owned by a user. A seat key is deleted only
// when it still records the caller as holder.
//
// KEYS: user set, showtime index, session marker, active showtime
// ARGV: user id, seat key prefix, showtime id, seat ids... (none = all)
//
// Returns the seat ids whose hold by the caller ended.
var releaseScript = redis.NewScript(`
local seats = {}
if #ARGV > 3 then
  for i = 4, #ARGV do
    seats[#seats + 1] = ARGV[i]
  end
else
  seats = redis.call('SMEMBERS', KEYS[1])
end

local released = {}
for _, s in ipairs(seats) do
  local key = ARGV[2] .. s
  local owner = redis.call('GET', key)
  local mine = redis.call('SISMEMBER', KEYS[1], s) == 1
  if owner == ARGV[1] then
    redis.call('DEL', key)
    redis.call('SREM', KEYS[2], s)
    released[#released + 1] = s
  elseif not owner then
    redis.call('SREM', KEYS[2], s)
    if mine then
      released[#released + 1] = s
    end
  end
  redis.call('SREM', KEYS[1], s)
end

if redis.call('SCARD', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1])
  redis.call('DEL', KEYS[3])
  if redis.call('GET', KEYS[4]) == ARGV[3] then
    redis.call('DEL', KEYS[4])
  end
end
return released
`)

// Acquire atomically tries to hold a seat for a user.
func (s *HoldStore) Acquire(ctx context.Context, userID, showtimeID, seatID int64, limit int, t HoldTimings) (AcquireResult, error) {
	keys := []string{
		seatKey(showtimeID, seatID),
		userKey(userID, showtimeID),
		indexKey(showtimeID),
		sessionKey(userID, showtimeID),
		activeKey(userID),
	}
	res, err := acquireScript.Run(ctx, s.client, keys,
		userID,
		seatID,
		t.TTL.Milliseconds(),
		(t.TTL + t.Grace).Milliseconds(),
		limit,
		seatPrefix(showtimeID),
		showtimeID,
	).Int()
	if err != nil {
		return Taken, unavailable(err)
	}

	switch res {
	case 1:
		return Acquired, nil
	case 2:
		return AlreadyHeld, nil
	case -1:
		return LimitReached, nil
	case -2:
		return SwitchRequired, nil
	default:
		return Taken, nil
	}
}

// Release ends the user's holds on the given seats, or on all of the
// user's seats for the showtime when seatIDs is empty.
func (s *HoldStore) Release(ctx context.Context, userID, showtimeID int64, seatIDs []int64) ([]int64, error) {
	keys := []string{
		userKey(userID, showtimeID),
		indexKey(showtimeID),
		sessionKey(userID, showtimeID),
		activeKey(userID),
	}
	args := make([]any, 0, 3+len(seatIDs))
	args = append(args, userID, seatPrefix(showtimeID), showtimeID)
	for _, id := range seatIDs {
		args = append(args, id)
	}

	raw, err := releaseScript.Run(ctx, s.client, keys, args...).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}
	return parseIDs(raw), nil
}

// ActiveShowtime returns the showtime the user currently holds seats for,
// or 0 when there is none.
func (s *HoldStore) ActiveShowtime(ctx context.Context, userID int64) (int64, error) {
	v, err := s.client.Get(ctx, activeKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return v, nil
}

// HeldSeats returns seat -> holder for the showtime. Index members whose
// seat key has expired are pruned.
func (s *HoldStore) HeldSeats(ctx context.Context, showtimeID int64) (map[int64]int64, error) {
	members, err := s.client.SMembers(ctx, indexKey(showtimeID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(members) == 0 {
		return map[int64]int64{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.Get(ctx, seatPrefix(showtimeID)+m)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	held := make(map[int64]int64, len(members))
	var stale []any
	for i, cmd := range cmds {
		holder, err := cmd.Int64()
		if err != nil {
			stale = append(stale, members[i])
			continue
		}
		seatID, err := strconv.ParseInt(members[i], 10, 64)
		if err != nil {
			stale = append(stale, members[i])
			continue
		}
		held[seatID] = holder
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexKey(showtimeID), stale...).Err(); err != nil {
			return nil, unavailable(err)
		}
	}
	return held, nil
}

// UserSeats returns the seats the user holds for the showtime, sorted.
func (s *HoldStore) UserSeats(ctx context.Context, userID, showtimeID int64) ([]int64, error) {
	members, err := s.client.SMembers(ctx, userKey(userID, showtimeID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return parseIDs(members), nil
}

// SessionTTL returns the remaining lifetime of the user's hold session.
func (s *HoldStore) SessionTTL(ctx context.Context, userID, showtimeID int64) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, sessionKey(userID, showtimeID)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// HasHolds reports whether any seat of the showtime is held.
func (s *HoldStore) HasHolds(ctx context.Context, showtimeID int64) (bool, error) {
	held, err := s.HeldSeats(ctx, showtimeID)
	if err != nil {
		return false, err
	}
	return len(held) > 0, nil
}

// Session identifies one user's hold session for a showtime
type Session struct {
	UserID     int64
	ShowtimeID int64
}

// OrphanedSessions finds user hold sets whose session marker is gone. It
// scans the keyspace and is meant for the background sweep only.
func (s *HoldStore) OrphanedSessions(ctx context.Context) ([]Session, error) {
	var orphans []Session
	iter := s.client.Scan(ctx, 0, userKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		userID, showtimeID, ok := parsePair(iter.Val(), userKeyPrefix)
		if !ok {
			continue
		}
		n, err := s.client.Exists(ctx, sessionKey(userID, showtimeID)).Result()
		if err != nil {
			return nil, unavailable(err)
		}
		if n == 0 {
			orphans = append(orphans, Session{UserID: userID, ShowtimeID: showtimeID})
		}
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable(err)
	}
	return orphans, nil
}

func parseIDs(raw []string) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
