package storage

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Decode unmarshals one record. A payload that cannot be decoded is reported
// as absent instead of failing the caller.
func Decode[T any](rec Record) (T, bool) {
	var v T
	if len(rec.Payload) == 0 {
		return v, false
	}
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		log.Warn().Err(err).Int64("key", rec.Key).Msg("skip undecodable record")
		var zero T
		return zero, false
	}
	if ks, ok := any(&v).(KeySetter); ok && rec.Key > 0 {
		ks.SetStoreKey(rec.Key)
	}
	return v, true
}

// DecodeAll decodes every record, skipping the ones that fail.
func DecodeAll[T any](recs []Record) []T {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if v, ok := Decode[T](rec); ok {
			out = append(out, v)
		}
	}
	return out
}
