package storage

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      id,
                      start_time,
                      device_type,
                      device_id,
                      config)
VALUES (?, CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
ORDER BY start_time`

	insertDetectionSQL = `
INSERT INTO detections (session_id,
                        start_time,
                        end_time,
                        duration_ms,
                        peak_power)
VALUES (?, ?, ?, ?, ?)`

	selectDetectionsSQL = `
SELECT
    id,
    session_id,
    start_time,
    end_time,
    duration_ms,
    peak_power
FROM detections
WHERE
    session_id = ?
ORDER BY start_time`

	insertTraceSQL = `
INSERT INTO power_trace (session_id,
                         timestamp,
                         mean_power,
                         peak_power)
VALUES `

	selectTraceSQL = `
SELECT
    timestamp,
    mean_power,
    peak_power
FROM power_trace
WHERE
    session_id = ?
ORDER BY timestamp`
)
