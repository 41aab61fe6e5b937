package httptransport

import "expvar"

var (
	metricGamesStartedTotal   = expvar.NewInt("games_started_total")
	metricGameMutationsTotal  = expvar.NewInt("game_mutations_total")
	metricCheckpointErrors    = expvar.NewInt("checkpoint_errors_total")
	metricGamesArchivedTotal  = expvar.NewInt("games_archived_total")
	metricHistoryQueryTotal   = expvar.NewInt("history_query_total")
	metricHistoryDeletesTotal = expvar.NewInt("history_deletes_total")
	metricStorageUnavailable  = expvar.NewInt("storage_unavailable_total")
)
