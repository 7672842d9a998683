package runner

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"taxid/internal/config"
	"taxid/internal/tabular"
)

// eutilsStub fakes the esearch/efetch endpoints and records traffic.
type eutilsStub struct {
	mu       sync.Mutex
	searches []string
	fetches  []string
	ids      map[string][]string // search term -> candidate ids
	ranks    map[string]string   // taxid -> rank
}

func (s *eutilsStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch r.URL.Path {
		case "/esearch.fcgi":
			term := r.URL.Query().Get("term")
			s.searches = append(s.searches, term)
			payload := map[string]any{"esearchresult": map[string]any{"idlist": s.ids[term]}}
			_ = json.NewEncoder(w).Encode(payload)
		case "/efetch.fcgi":
			id := r.URL.Query().Get("id")
			s.fetches = append(s.fetches, id)
			fmt.Fprintf(w, `<TaxaSet><Taxon><TaxId>%s</TaxId><Rank>%s</Rank></Taxon></TaxaSet>`, id, s.ranks[id])
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *eutilsStub) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Entrez.Email = "tester@example.org"
	cfg.Entrez.BaseURL = baseURL
	cfg.Entrez.DelaySeconds = 0.001
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.json")
	return &cfg
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return records
}

func TestRunResolvesAndDeduplicates(t *testing.T) {
	stub := &eutilsStub{
		ids: map[string][]string{
			`"Escherichia coli"[SCIN]`: {"562"},
		},
		ranks: map[string]string{"562": "species"},
	}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	cfg := testConfig(t, server.URL)
	input := writeInput(t, strings.Join([]string{
		"Taxon,Domain,Species",
		"t1,Bacteria,Escherichia coli",
		"t2,Bacteria,Escherichia_coli",
		"t3,Bacteria,Unknownia fakensis",
		"",
	}, "\n"))
	output := filepath.Join(t.TempDir(), "out.csv")

	summary, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: output}, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Rows != 3 || summary.UniqueNames != 2 || summary.Resolved != 1 {
		t.Errorf("summary = %+v", summary)
	}

	records := readCSV(t, output)
	if len(records) != 4 {
		t.Fatalf("output has %d records, want header + 3 rows", len(records))
	}
	if records[0][3] != "NCBI_TaxID" {
		t.Errorf("appended column = %q", records[0][3])
	}
	if records[1][3] != "562" || records[2][3] != "562" {
		t.Errorf("E. coli rows = %q, %q; want 562 for both", records[1][3], records[2][3])
	}
	if records[3][3] != "" {
		t.Errorf("unresolved row = %q, want empty", records[3][3])
	}

	// One attempt-sequence per unique name: one winning search for E. coli,
	// three empty variants for the unknown name. The repeat row costs nothing.
	if stub.searchCount() != 4 {
		t.Errorf("search calls = %d (%v), want 4", stub.searchCount(), stub.searches)
	}
}

func TestRunResumeSkipsCachedNames(t *testing.T) {
	stub := &eutilsStub{ids: map[string][]string{}, ranks: map[string]string{}}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	cfg := testConfig(t, server.URL)
	seed := map[string]string{
		"Escherichia coli":   "562",
		"Unknownia fakensis": "",
	}
	data, _ := json.Marshal(seed)
	if err := os.WriteFile(cfg.Cache.Path, data, 0o644); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	input := writeInput(t, "Taxon,Species\nt1,Escherichia coli\nt2,Unknownia fakensis\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	summary, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: output, Resume: true}, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stub.searchCount() != 0 {
		t.Errorf("resume run issued %d remote calls, want 0", stub.searchCount())
	}
	if summary.CachedAtStart != 2 || summary.NewLookups != 0 {
		t.Errorf("summary = %+v", summary)
	}

	records := readCSV(t, output)
	if records[1][2] != "562" || records[2][2] != "" {
		t.Errorf("rows = %v", records[1:])
	}
}

func TestRunWithoutResumeIgnoresCache(t *testing.T) {
	stub := &eutilsStub{
		ids:   map[string][]string{`"Escherichia coli"[SCIN]`: {"562"}},
		ranks: map[string]string{"562": "species"},
	}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	cfg := testConfig(t, server.URL)
	seed := map[string]string{"Escherichia coli": "999"}
	data, _ := json.Marshal(seed)
	if err := os.WriteFile(cfg.Cache.Path, data, 0o644); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	input := writeInput(t, "Taxon,Species\nt1,Escherichia coli\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	if _, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: output}, nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stub.searchCount() == 0 {
		t.Error("non-resume run should re-resolve despite existing cache")
	}
	records := readCSV(t, output)
	if records[1][2] != "562" {
		t.Errorf("row taxid = %q, want fresh 562 not stale 999", records[1][2])
	}
}

func TestRunMissingSpeciesColumn(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	input := writeInput(t, "Taxon,Genus\nt1,Escherichia\n")

	_, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: filepath.Join(t.TempDir(), "out.csv")}, nil)
	if !errors.Is(err, tabular.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestRunEmptyTable(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	input := writeInput(t, "Taxon,Species\n")

	_, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: filepath.Join(t.TempDir(), "out.csv")}, nil)
	if !errors.Is(err, tabular.ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}
}

func TestRunRequiresEmail(t *testing.T) {
	t.Setenv("NCBI_EMAIL", "")
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Entrez.Email = ""
	input := writeInput(t, "Taxon,Species\nt1,Escherichia coli\n")

	if _, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: filepath.Join(t.TempDir(), "out.csv")}, nil); err == nil {
		t.Fatal("expected error when contact email missing")
	}
}

func TestRunInterruptionPublishesPrefix(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	input := writeInput(t, "Taxon,Species\nt1,Escherichia coli\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, cfg, Options{InputPath: input, OutputPath: output}, nil)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if !summary.Interrupted {
		t.Error("summary should record interruption")
	}

	// The published output is a valid table: header plus the rows completed
	// before cancellation (none here).
	records := readCSV(t, output)
	if len(records) != 1 || records[0][2] != "NCBI_TaxID" {
		t.Errorf("published prefix = %v", records)
	}
	if _, err := os.Stat(output + ".part"); !os.IsNotExist(err) {
		t.Errorf("temp file should be gone after publish, stat err = %v", err)
	}
}

func TestRunOverwritesExistingTaxIDColumn(t *testing.T) {
	stub := &eutilsStub{
		ids:   map[string][]string{`"Escherichia coli"[SCIN]`: {"562"}},
		ranks: map[string]string{"562": "species"},
	}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	cfg := testConfig(t, server.URL)
	input := writeInput(t, "Taxon,Species,NCBI_TaxID\nt1,Escherichia coli,stale\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	if _, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: output}, nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	records := readCSV(t, output)
	if len(records[0]) != 3 {
		t.Errorf("header = %v, column must not be duplicated", records[0])
	}
	if records[1][2] != "562" {
		t.Errorf("taxid cell = %q, want overwritten 562", records[1][2])
	}
}

func TestRunLimitRestrictsLookups(t *testing.T) {
	stub := &eutilsStub{
		ids:   map[string][]string{`"Aaa bbb"[SCIN]`: {"1"}},
		ranks: map[string]string{"1": "species"},
	}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	cfg := testConfig(t, server.URL)
	input := writeInput(t, "Taxon,Species\nt1,Aaa bbb\nt2,Ccc ddd\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	summary, err := Run(context.Background(), cfg, Options{InputPath: input, OutputPath: output, Limit: 1}, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.UniqueNames != 1 {
		t.Errorf("unique names = %d, want 1 with limit", summary.UniqueNames)
	}

	records := readCSV(t, output)
	if records[1][2] != "1" {
		t.Errorf("limited name = %q, want 1", records[1][2])
	}
	if records[2][2] != "" {
		t.Errorf("beyond-limit name = %q, want empty without lookup", records[2][2])
	}
	for _, term := range stub.searches {
		if strings.Contains(term, "Ccc ddd") {
			t.Errorf("beyond-limit name was queried: %q", term)
		}
	}
}

func TestRunCacheLockContention(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	input := writeInput(t, "Taxon,Species\nt1,Escherichia coli\n")

	lock := flock.New(cfg.Cache.Path + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: %v %v", locked, err)
	}
	defer lock.Unlock()

	_, err = Run(context.Background(), cfg, Options{InputPath: input, OutputPath: filepath.Join(t.TempDir(), "out.csv")}, nil)
	if err == nil || !strings.Contains(err.Error(), "another run") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}
