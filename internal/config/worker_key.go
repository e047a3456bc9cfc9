package config

type WorkerKeyStruct struct {
	PersistDraftsQueue  string
	PersistResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistDraftsQueue:  "persist_drafts_queue",
	PersistResultsQueue: "persist_results_queue",
}
