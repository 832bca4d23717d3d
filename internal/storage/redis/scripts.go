package redis

const (
	// saveReportScript atomically stores a snapshot and indexes it by window start
	saveReportScript = `
local report_key = KEYS[1]     -- fleethours:report:{id}
local index_key = KEYS[2]      -- fleethours:reports:{kind}

local id = ARGV[1]
local kind = ARGV[2]
local window_start = ARGV[3]
local window_end = ARGV[4]
local timezone = ARGV[5]
local generated_at = ARGV[6]
local payload = ARGV[7]
local score = tonumber(ARGV[8])
local ttl_seconds = tonumber(ARGV[9])

-- Replace any previous snapshot for the same window
redis.call('DEL', report_key)
redis.call('HSET', report_key,
  'id', id,
  'kind', kind,
  'window_start', window_start,
  'window_end', window_end,
  'timezone', timezone,
  'generated_at', generated_at,
  'payload', payload
)

redis.call('ZADD', index_key, score, id)

if ttl_seconds > 0 then
  redis.call('EXPIRE', report_key, ttl_seconds)
  -- Drop index entries whose snapshots can no longer exist
  redis.call('ZREMRANGEBYSCORE', index_key, '-inf', '(' .. (score - ttl_seconds))
end

return 'OK'
`
)
