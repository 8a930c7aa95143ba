package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"checkin-system/internal/status"
	"checkin-system/models"
	"checkin-system/utils"

	"github.com/redis/go-redis/v9"
)

const (
	keyAttendeePrefix   = "checkin:attendee:"
	keyAttendeeIndex    = "checkin:attendees"
	keyCheckedIn        = "checkin:checked_in"
	keyQueueEntryPrefix = "checkin:queue:entry:"
	keyQueueWaiting     = "checkin:queue:waiting"
	keyQueueActive      = "checkin:queue:active"
	keyQueueAll         = "checkin:queue:all"
	keyQueueSeq         = "checkin:queue:seq"
)

func attendeeKey(userID string) string { return keyAttendeePrefix + userID }
func entryKey(queueID string) string   { return keyQueueEntryPrefix + queueID }

// Redis keeps attendees and queue entries as hashes with sorted-set indexes.
// Multi-key invariants (capacity, duplicates, transitions) run as Lua scripts.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Ping(ctx context.Context) error {
	return utils.RedisHealthCheck(ctx, r.client)
}

// ---- attendees ----

func (r *Redis) Create(ctx context.Context, a *models.Attendee) error {
	ok, err := r.putAttendee(ctx, a, false)
	if err != nil {
		return fmt.Errorf("create attendee %s: %w", a.UserID, err)
	}
	if !ok {
		return status.ErrAttendeeExists
	}
	return nil
}

func (r *Redis) Update(ctx context.Context, a *models.Attendee) error {
	ok, err := r.putAttendee(ctx, a, true)
	if err != nil {
		return fmt.Errorf("update attendee %s: %w", a.UserID, err)
	}
	if !ok {
		return status.ErrAttendeeNotFound
	}
	return nil
}

func (r *Redis) putAttendee(ctx context.Context, a *models.Attendee, mustExist bool) (bool, error) {
	flag := "0"
	if mustExist {
		flag = "1"
	}
	args := []interface{}{flag, a.UserID}
	args = append(args, profileFields(a, !mustExist)...)

	res, err := r.client.Eval(ctx, putAttendeeScript,
		[]string{attendeeKey(a.UserID), keyAttendeeIndex}, args...).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (r *Redis) Get(ctx context.Context, userID string) (*models.Attendee, error) {
	fields, err := r.client.HGetAll(ctx, attendeeKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get attendee %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, status.ErrAttendeeNotFound
	}
	a := decodeAttendee(fields)
	return &a, nil
}

func (r *Redis) List(ctx context.Context, limit int, startAfter string) ([]models.Attendee, error) {
	rng := &redis.ZRangeBy{Min: "-", Max: "+"}
	if startAfter != "" {
		rng.Min = "(" + startAfter
	}
	if limit > 0 {
		rng.Count = int64(limit)
	}

	ids, err := r.client.ZRangeByLex(ctx, keyAttendeeIndex, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("list attendee ids: %w", err)
	}
	return r.loadAttendees(ctx, ids)
}

func (r *Redis) CheckedIn(ctx context.Context, limit int) ([]models.Attendee, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, keyCheckedIn, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list checked-in ids: %w", err)
	}

	attendees, err := r.loadAttendees(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := attendees[:0]
	for _, a := range attendees {
		if a.CheckedIn() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Redis) loadAttendees(ctx context.Context, ids []string) ([]models.Attendee, error) {
	if len(ids) == 0 {
		return []models.Attendee{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, attendeeKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load attendees: %w", err)
	}

	out := make([]models.Attendee, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out = append(out, decodeAttendee(fields))
	}
	return out, nil
}

func (r *Redis) RecordCheckin(ctx context.Context, userID string, rec models.CheckinRecord) error {
	res, err := r.client.Eval(ctx, recordCheckinScript,
		[]string{attendeeKey(userID), keyCheckedIn},
		userID, formatMillis(rec.At), string(rec.Method)).Int64()
	if err != nil {
		return fmt.Errorf("record check-in %s: %w", userID, err)
	}
	if res == 0 {
		return status.ErrAttendeeNotFound
	}
	return nil
}

// ResetCheckins clears the check-in record of every checked-in attendee, one
// transaction per chunk. Attendees flagged as checked in without a timestamp
// are included.
func (r *Redis) ResetCheckins(ctx context.Context, chunkSize int) (int, error) {
	ids, err := r.client.ZRange(ctx, keyAttendeeIndex, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list attendee ids: %w", err)
	}

	flags := make([]*redis.StringCmd, len(ids))
	if len(ids) > 0 {
		_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				flags[i] = pipe.HGet(ctx, attendeeKey(id), "checked_in")
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("read check-in flags: %w", err)
		}
	}

	var checked []string
	for i, id := range ids {
		if flags[i].Val() == "1" {
			checked = append(checked, id)
		}
	}

	reset := 0
	for _, chunk := range chunks(checked, chunkSize) {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			members := make([]interface{}, len(chunk))
			for i, id := range chunk {
				pipe.HSet(ctx, attendeeKey(id), "checked_in", "0")
				pipe.HDel(ctx, attendeeKey(id), "checked_in_at", "checked_in_method")
				members[i] = id
			}
			pipe.ZRem(ctx, keyCheckedIn, members...)
			return nil
		})
		if err != nil {
			return reset, fmt.Errorf("reset check-ins chunk: %w", err)
		}
		reset += len(chunk)
	}
	return reset, nil
}

func (r *Redis) DeleteAll(ctx context.Context, chunkSize int) (int, error) {
	ids, err := r.client.ZRange(ctx, keyAttendeeIndex, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list attendee ids: %w", err)
	}

	deleted := 0
	for _, chunk := range chunks(ids, chunkSize) {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			keys := make([]string, len(chunk))
			members := make([]interface{}, len(chunk))
			for i, id := range chunk {
				keys[i] = attendeeKey(id)
				members[i] = id
			}
			pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, keyAttendeeIndex, members...)
			pipe.ZRem(ctx, keyCheckedIn, members...)
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("delete attendees chunk: %w", err)
		}
		deleted += len(chunk)
	}
	return deleted, nil
}

// ---- queue ----

func (r *Redis) TryAdmit(ctx context.Context, adm Admission) (int, error) {
	e := adm.Entry
	media := "0"
	if adm.MediaValid {
		media = "1"
	}

	res, err := r.client.Eval(ctx, admitScript,
		[]string{keyQueueWaiting, keyQueueActive, entryKey(e.QueueID), keyQueueAll, keyQueueSeq},
		strconv.Itoa(adm.MaxWaiting), e.UserID, e.QueueID, e.Name, e.VideoURL,
		formatMillis(e.CreatedAt), media,
	).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("admit %s: %w", e.UserID, err)
	}
	if len(res) < 2 {
		return 0, fmt.Errorf("admit %s: unexpected reply %v", e.UserID, res)
	}

	switch res[0] {
	case -1:
		return 0, status.ErrQueueFull
	case -2:
		return 0, status.ErrAlreadyQueued
	case -3:
		return 0, status.ErrInvalidMedia
	}
	return int(res[0]), nil
}

func (r *Redis) Entry(ctx context.Context, queueID string) (*models.QueueEntry, error) {
	fields, err := r.client.HGetAll(ctx, entryKey(queueID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get queue entry %s: %w", queueID, err)
	}
	if len(fields) == 0 {
		return nil, status.ErrQueueEntryNotFound
	}
	e := decodeEntry(fields)
	return &e, nil
}

func (r *Redis) Waiting(ctx context.Context) ([]models.QueueEntry, error) {
	ids, err := r.client.ZRange(ctx, keyQueueWaiting, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list waiting ids: %w", err)
	}
	if len(ids) == 0 {
		return []models.QueueEntry{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, entryKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load waiting entries: %w", err)
	}

	out := make([]models.QueueEntry, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		e := decodeEntry(fields)
		if e.Status == models.StatusWaiting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *Redis) CountWaiting(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, keyQueueWaiting).Result()
	if err != nil {
		return 0, fmt.Errorf("count waiting: %w", err)
	}
	return int(n), nil
}

func (r *Redis) Transition(ctx context.Context, queueID string, to models.QueueStatus, at time.Time) (*models.QueueEntry, error) {
	field := "completed_at"
	if to == models.StatusPlaying {
		field = "played_at"
	}
	sources := models.AllowedSources(to)
	allowed := make([]string, len(sources))
	for i, s := range sources {
		allowed[i] = string(s)
	}

	res, err := r.client.Eval(ctx, transitionScript,
		[]string{entryKey(queueID), keyQueueWaiting, keyQueueActive},
		string(to), field, formatMillis(at), strings.Join(allowed, ","), queueID,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("transition %s: %w", queueID, err)
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("transition %s: unexpected reply %v", queueID, res)
	}

	code, _ := res[0].(int64)
	switch code {
	case -1:
		return nil, status.ErrQueueEntryNotFound
	case -2:
		current, _ := res[1].(string)
		return nil, status.InvalidTransition(current, string(to))
	}
	return r.Entry(ctx, queueID)
}

// Clear deletes every queue entry regardless of status, one script per chunk.
// Entries admitted after the snapshot are left in place.
func (r *Redis) Clear(ctx context.Context, chunkSize int) (int, error) {
	ids, err := r.client.SMembers(ctx, keyQueueAll).Result()
	if err != nil {
		return 0, fmt.Errorf("list queue ids: %w", err)
	}

	cleared := 0
	for _, chunk := range chunks(ids, chunkSize) {
		keys, args := clearChunkArgs(chunk)
		n, err := r.client.Eval(ctx, clearChunkScript, keys, args...).Int()
		if err != nil {
			return cleared, fmt.Errorf("clear queue chunk: %w", err)
		}
		cleared += n
	}
	return cleared, nil
}

func clearChunkArgs(ids []string) ([]string, []interface{}) {
	keys := make([]string, 0, len(ids)+3)
	keys = append(keys, keyQueueWaiting, keyQueueActive, keyQueueAll)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		keys = append(keys, entryKey(id))
		args[i] = id
	}
	return keys, args
}

// ---- encoding ----

func profileFields(a *models.Attendee, withCreated bool) []interface{} {
	fields := []interface{}{
		"user_id", a.UserID,
		"name", a.Name,
		"is_vip", formatBool(a.IsVIP),
		"seat", a.Seat,
		"image_url", a.ImageURL,
		"video_url", a.VideoURL,
		"email", a.Email,
		"phone", a.Phone,
		"house", a.House,
	}
	if withCreated {
		fields = append(fields, "created_at", formatMillis(a.CreatedAt), "checked_in", "0")
	}
	return fields
}

func decodeAttendee(f map[string]string) models.Attendee {
	a := models.Attendee{
		UserID:    f["user_id"],
		Name:      f["name"],
		IsVIP:     f["is_vip"] == "1",
		Seat:      f["seat"],
		ImageURL:  f["image_url"],
		VideoURL:  f["video_url"],
		Email:     f["email"],
		Phone:     f["phone"],
		House:     f["house"],
		CreatedAt: parseMillis(f["created_at"]),
	}
	if f["checked_in"] == "1" {
		// a missing or corrupt timestamp decodes to a zero At
		a.Checkin = &models.CheckinRecord{
			At:     parseMillis(f["checked_in_at"]),
			Method: models.CheckinMethod(f["checked_in_method"]),
		}
	}
	return a
}

func decodeEntry(f map[string]string) models.QueueEntry {
	e := models.QueueEntry{
		QueueID:   f["queue_id"],
		UserID:    f["user_id"],
		Name:      f["name"],
		VideoURL:  f["video_url"],
		Status:    models.QueueStatus(f["status"]),
		CreatedAt: parseMillis(f["created_at"]),
	}
	e.Seq, _ = strconv.ParseInt(f["seq"], 10, 64)
	if t := parseMillis(f["played_at"]); !t.IsZero() {
		e.PlayedAt = &t
	}
	if t := parseMillis(f["completed_at"]); !t.IsZero() {
		e.CompletedAt = &t
	}
	return e
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
