package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// searchConfig is the file-backed configuration of the search loop.
type searchConfig struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Limit    int    `json:"limit" validate:"min=1"`
}

// request identifies one search run. A new endpoint or query restarts it.
type request struct {
	Endpoint string
	Query    string
	Limit    int
}

type state struct {
	Config  searchConfig
	Query   string
	Results []string
	Runs    int
}

type event interface{ isEvent() }

type configLoaded struct{ Config searchConfig }

type queryChanged struct{ Query string }

type resultsArrived struct {
	Request request
	Results []string
}

func (configLoaded) isEvent()   {}
func (queryChanged) isEvent()   {}
func (resultsArrived) isEvent() {}

func reduce(s state, e event) state {
	switch e := e.(type) {
	case configLoaded:
		s.Config = e.Config
	case queryChanged:
		s.Query = e.Query
		s.Results = nil
	case resultsArrived:
		if e.Request == s.request() {
			s.Results = e.Results
			s.Runs++
		}
	}
	return s
}

func (s state) request() request {
	return request{Endpoint: s.Config.Endpoint, Query: s.Query, Limit: s.Config.Limit}
}

// project asks for a search whenever both a config and a query are present.
func project(s state) (request, bool) {
	if s.Config.Endpoint == "" || s.Query == "" {
		return request{}, false
	}
	return s.request(), true
}

func writeConfig(t *testing.T, path string, cfg searchConfig) {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	tmp := filepath.Join(filepath.Dir(path), ".config.tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("failed to replace config: %v", err)
	}
}
