package pgtypes

import "time"

// Per spec.md §3: "All datetime user columns store INTEGER: DATE=days since
// 1970-01-01; TIME/TIMETZ=microseconds since midnight;
// TIMESTAMP/TIMESTAMPTZ=microseconds since epoch; INTERVAL=microseconds."

const microsPerDay = int64(24 * time.Hour / time.Microsecond)

// EpochDate is the PostgreSQL/Unix epoch used for DATE storage.
var EpochDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// DaysFromDate converts a civil date to the INTEGER "days since epoch" form
// stored in SQLite.
func DaysFromDate(t time.Time) int64 {
	y, m, d := t.Date()
	civil := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int64(civil.Sub(EpochDate) / (24 * time.Hour))
}

// DateFromDays converts stored days-since-epoch back to a civil date at
// midnight UTC.
func DateFromDays(days int64) time.Time {
	return EpochDate.AddDate(0, 0, int(days))
}

// MicrosFromTimestamp converts a timestamp to microseconds since epoch.
func MicrosFromTimestamp(t time.Time) int64 {
	return t.UTC().Sub(EpochDate).Microseconds()
}

// TimestampFromMicros converts microseconds-since-epoch storage back to a
// UTC time.Time.
func TimestampFromMicros(micros int64) time.Time {
	return EpochDate.Add(time.Duration(micros) * time.Microsecond)
}

// MicrosFromTimeOfDay converts a wall-clock time of day to microseconds
// since midnight, for TIME/TIMETZ storage.
func MicrosFromTimeOfDay(t time.Time) int64 {
	h, m, s := t.Clock()
	ns := t.Nanosecond()
	return (int64(h)*3600+int64(m)*60+int64(s))*1_000_000 + int64(ns)/1000
}

// TimeOfDayFromMicros converts microseconds-since-midnight storage back to a
// time.Time anchored at 2000-01-01 UTC, for formatting.
func TimeOfDayFromMicros(micros int64) time.Time {
	d := time.Duration(micros) * time.Microsecond
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(d)
}

// IntervalMicros converts a time.Duration to the INTERVAL storage unit.
func IntervalMicros(d time.Duration) int64 { return d.Microseconds() }
