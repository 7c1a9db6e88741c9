package redis

import goredis "github.com/redis/go-redis/v9"

// nextValueScript increments an existing counter. It returns -1 when the
// counter was never seeded.
var nextValueScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('INCR', KEYS[1])
`)

// createInstanceScript claims the (jobName, jobKey) pair and writes the
// instance. It returns 0 when the pair is already taken.
//
// KEYS: unique hash, instance hash, job instances zset, job names set
// ARGV: unique field, id, jobName, jobKey, createTime
var createInstanceScript = goredis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], 'id', ARGV[2], 'jobName', ARGV[3], 'jobKey', ARGV[4], 'createTime', ARGV[5])
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[2])
redis.call('SADD', KEYS[4], ARGV[3])
return 1
`)

// transitionScript sets fields on a record only if its status equals
// ARGV[1]. It returns -1 for a missing record, the current status when it
// differs, or the updated record as a flat field/value list.
//
// KEYS: record hash
// ARGV: expected status, field, value, ...
var transitionScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'status')
if not current then
  return -1
end
if current ~= ARGV[1] then
  return current
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return redis.call('HGETALL', KEYS[1])
`)
