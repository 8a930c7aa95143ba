package store

// admitScript checks capacity, then duplicates, then media validity, and only
// then inserts. Reply: {position, seq} on success, {-1|-2|-3, waiting} on rejection.
//
// KEYS: waiting zset, active hash, entry hash, all-entries set, sequence counter
// ARGV: max waiting, user id, queue id, name, video url, created_at ms, media valid (1/0)
const admitScript = `
local waiting = redis.call('ZCARD', KEYS[1])
if waiting >= tonumber(ARGV[1]) then
	return {-1, waiting}
end
if redis.call('HEXISTS', KEYS[2], ARGV[2]) == 1 then
	return {-2, waiting}
end
if ARGV[7] ~= '1' then
	return {-3, waiting}
end
local seq = redis.call('INCR', KEYS[5])
redis.call('HSET', KEYS[3],
	'queue_id', ARGV[3],
	'user_id', ARGV[2],
	'name', ARGV[4],
	'video_url', ARGV[5],
	'status', 'WAITING',
	'created_at', ARGV[6],
	'seq', seq)
redis.call('ZADD', KEYS[1], seq, ARGV[3])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('SADD', KEYS[4], ARGV[3])
return {waiting + 1, seq}
`

// transitionScript moves an entry to a new status when its current status is in
// the allowed list. Reply: {1, previous} on success, {-1, ''} when missing,
// {-2, current} when the move is not allowed.
//
// KEYS: entry hash, waiting zset, active hash
// ARGV: target status, timestamp field, timestamp ms, allowed sources (comma separated), queue id
const transitionScript = `
local current = redis.call('HGET', KEYS[1], 'status')
if not current then
	return {-1, ''}
end
local allowed = false
for from in string.gmatch(ARGV[4], '[^,]+') do
	if from == current then
		allowed = true
	end
end
if not allowed then
	return {-2, current}
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], ARGV[2], ARGV[3])
if current == 'WAITING' then
	redis.call('ZREM', KEYS[2], ARGV[5])
end
if ARGV[1] == 'DONE' or ARGV[1] == 'ERROR' then
	local user = redis.call('HGET', KEYS[1], 'user_id')
	if user and redis.call('HGET', KEYS[3], user) == ARGV[5] then
		redis.call('HDEL', KEYS[3], user)
	end
end
return {1, current}
`

// clearChunkScript deletes the given entries and drops them from every queue
// index. An active mapping is removed only while it still points at the
// deleted entry, so admissions landing mid-clear keep their index rows.
// Reply: number of entry hashes deleted.
//
// KEYS: waiting zset, active hash, all-entries set, entry hashes...
// ARGV: queue ids, aligned with the entry hashes
const clearChunkScript = `
local removed = 0
for i, id in ipairs(ARGV) do
	local entry = KEYS[i + 3]
	local user = redis.call('HGET', entry, 'user_id')
	if user and redis.call('HGET', KEYS[2], user) == id then
		redis.call('HDEL', KEYS[2], user)
	end
	removed = removed + redis.call('DEL', entry)
	redis.call('ZREM', KEYS[1], id)
	redis.call('SREM', KEYS[3], id)
end
return removed
`

// putAttendeeScript writes attendee fields only if the record's existence
// matches ARGV[1] ('0' create, '1' update). Reply: 1 written, 0 rejected.
//
// KEYS: attendee hash, attendee index zset
// ARGV: must exist flag, user id, field/value pairs...
const putAttendeeScript = `
local exists = redis.call('EXISTS', KEYS[1])
if tostring(exists) ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('ZADD', KEYS[2], 0, ARGV[2])
return 1
`

// recordCheckinScript stamps a check-in on an existing attendee.
//
// KEYS: attendee hash, checked-in zset
// ARGV: user id, checked_in_at ms, method
const recordCheckinScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'checked_in', '1', 'checked_in_at', ARGV[2], 'checked_in_method', ARGV[3])
redis.call('ZADD', KEYS[2], tonumber(ARGV[2]), ARGV[1])
return 1
`
