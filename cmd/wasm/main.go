//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"phrasematch/internal/adapter/analyzer"
	"phrasematch/internal/adapter/fuzzy"
	"phrasematch/internal/adapter/memstore"
	"phrasematch/internal/domain"
	"phrasematch/internal/logging"
	"phrasematch/internal/usecase"
)

var (
	store  *memstore.MemoryStore
	loader *usecase.LoadUseCase
	search *usecase.SearchUseCase
)

func init() {
	reset()
}

func reset() {
	log := logging.Discard()
	store = memstore.NewMemoryStore()
	loader = usecase.NewLoadUseCase(store, analyzer.NewNormalizer(""), 0, log)
	builder := usecase.NewBuildUseCase(store, nil, log)
	search = usecase.NewSearchUseCase(builder, nil, nil, usecase.SearchConfig{}, log)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("pmLoad", js.FuncOf(loadSnapshot))
	js.Global().Set("pmAdd", js.FuncOf(addPhrase))
	js.Global().Set("pmBuild", js.FuncOf(buildIndex))
	js.Global().Set("pmFind", js.FuncOf(find))
	js.Global().Set("pmClear", js.FuncOf(clearIndex))
	js.Global().Set("pmStats", js.FuncOf(getStats))

	<-c
}

func loadSnapshot(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: pmLoad(snapshotJSON)")
	}
	if err := search.LoadSnapshot([]byte(args[0].String())); err != nil {
		return makeError("loading snapshot failed: " + err.Error())
	}
	return statsResult()
}

func addPhrase(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: pmAdd(code, phrase)")
	}
	kept, err := loader.Ingest(context.Background(), domain.Record{
		Code:   args[0].String(),
		Phrase: args[1].String(),
		Source: "wasm",
	})
	if err != nil {
		return makeError("adding phrase failed: " + err.Error())
	}
	return makeResult(map[string]interface{}{
		"success": kept,
	})
}

func buildIndex(this js.Value, args []js.Value) interface{} {
	if _, err := search.Reload(context.Background()); err != nil {
		return makeError("build failed: " + err.Error())
	}
	return statsResult()
}

func find(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: pmFind(query, [limit])")
	}

	query := args[0].String()
	limit := fuzzy.DefaultMaxResults
	if len(args) > 1 {
		limit = args[1].Int()
	}

	matches, err := search.Search(query, limit)
	if err != nil {
		return makeError("search failed: " + err.Error())
	}
	return makeResult(map[string]interface{}{
		"results": matches,
		"query":   query,
	})
}

func clearIndex(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	return statsResult()
}

func statsResult() interface{} {
	count, _ := store.Count()
	info, err := search.Info()
	if err != nil {
		return makeResult(map[string]interface{}{
			"ready":   false,
			"pending": count,
		})
	}
	return makeResult(map[string]interface{}{
		"ready":    true,
		"pending":  count,
		"phrases":  info.Stats.Phrases,
		"records":  info.Stats.Records,
		"trigrams": info.Stats.Trigrams,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
