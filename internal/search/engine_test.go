package search

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ca-srg/treesearch/internal/basex"
	"github.com/ca-srg/treesearch/internal/types"
)

var (
	existsQuery   = regexp.MustCompile(`^db:exists\("([^"]+)"\)$`)
	includesQuery = regexp.MustCompile(`^string-join\(db:open\("([^"]+)"\)/treebank/include`)
	countQuery    = regexp.MustCompile(`^count\(db:open\("([^"]+)"\)`)
	treeQuery     = regexp.MustCompile(`^db:open\("([^"]+)"\)/treebank/alpino_ds\[@id="([^"]+)"\]$`)
	firstDatabase = regexp.MustCompile(`db:open\("([^"]+)"\)`)
	windowSlice   = regexp.MustCompile(`\[position\(\) = (\d+) to (\d+)\]$`)
)

// fakeEngine evaluates the queries this package generates against
// in-memory databases. Every database in records or includes exists.
type fakeEngine struct {
	mu         sync.Mutex
	records    map[string][]string
	includes   map[string][]string
	trees      map[string]string
	failOn     string
	connectErr map[string]error
	queries    []string
	connects   []types.ServerInfo
	open       int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		records:    map[string][]string{},
		includes:   map[string][]string{},
		trees:      map[string]string{},
		connectErr: map[string]error{},
	}
}

// addHits stores n well-formed records in database, with sentence ids
// prefix0, prefix1, ...
func (f *fakeEngine) addHits(database, prefix string, n int) {
	for i := 0; i < n; i++ {
		f.records[database] = append(f.records[database], hitRecord(fmt.Sprintf("%s%d", prefix, i), database))
	}
}

func hitRecord(id, database string) string {
	return "<match>" + strings.Join([]string{id, "Zin " + id + " .", database, "1-2", "0", "<node/>", "", ""}, "||") + "</match>"
}

func (f *fakeEngine) Connect(_ context.Context, info types.ServerInfo) (basex.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, info)
	if err := f.connectErr[info.Host]; err != nil {
		return nil, err
	}
	f.open++
	return &fakeSession{engine: f}, nil
}

func (f *fakeEngine) exists(database string) bool {
	_, ok := f.records[database]
	if !ok {
		_, ok = f.includes[database]
	}
	return ok
}

func (f *fakeEngine) countQueries(pattern *regexp.Regexp, database string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if m := pattern.FindStringSubmatch(q); m != nil && m[1] == database {
			n++
		}
	}
	return n
}

func (f *fakeEngine) searchQueries(database string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if !windowSlice.MatchString(q) {
			continue
		}
		if m := firstDatabase.FindStringSubmatch(q); m != nil && m[1] == database {
			n++
		}
	}
	return n
}

type fakeSession struct {
	engine *fakeEngine
	closed bool
}

func (s *fakeSession) Execute(_ context.Context, query string) (string, error) {
	f := s.engine
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return "", basex.NewQueryError(query, &basex.ServerError{Message: "Stopped at line 1, column 1: [XPST0003] Unexpected end of query"})
	}

	if m := existsQuery.FindStringSubmatch(query); m != nil {
		return strconv.FormatBool(f.exists(m[1])), nil
	}
	if m := includesQuery.FindStringSubmatch(query); m != nil {
		return strings.Join(f.includes[m[1]], "\n"), nil
	}
	if m := countQuery.FindStringSubmatch(query); m != nil {
		return strconv.Itoa(len(f.records[m[1]])), nil
	}
	if m := treeQuery.FindStringSubmatch(query); m != nil {
		return f.trees[m[1]+"/"+m[2]], nil
	}

	window := windowSlice.FindStringSubmatch(query)
	database := firstDatabase.FindStringSubmatch(query)
	if window == nil || database == nil {
		return "", basex.NewQueryError(query, &basex.ServerError{Message: "unsupported query"})
	}
	if !f.exists(database[1]) {
		return "", basex.NewQueryError(query, &basex.ServerError{Message: "Database '" + database[1] + "' was not found."})
	}

	from, _ := strconv.Atoi(window[1])
	to, _ := strconv.Atoi(window[2])
	all := f.records[database[1]]
	from--
	if from > len(all) {
		from = len(all)
	}
	if to > len(all) {
		to = len(all)
	}
	if to < from {
		to = from
	}
	return strings.Join(all[from:to], "\n"), nil
}

func (s *fakeSession) Close() error {
	if !s.closed {
		s.closed = true
		s.engine.mu.Lock()
		s.engine.open--
		s.engine.mu.Unlock()
	}
	return nil
}

// fakeTopology places every component of every corpus on its own host.
type fakeTopology struct {
	grinded bool
}

func (t fakeTopology) ServerInfo(corpus, component string) (types.ServerInfo, error) {
	if component == "" {
		return types.ServerInfo{}, fmt.Errorf("unknown component %q in corpus %q", component, corpus)
	}
	return types.ServerInfo{Host: "basex-" + strings.ToLower(component), Port: 1984, Username: "admin"}, nil
}

func (t fakeTopology) IsGrinded(string) bool {
	return t.grinded
}

// manifestMap serves manifests from memory, keyed by component.
type manifestMap map[string][]string

func (m manifestMap) Databases(_ context.Context, _ string, component string) ([]string, bool, error) {
	databases, ok := m[component]
	return databases, ok, nil
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type recordedSearch struct {
	corpus     string
	components []string
	pattern    string
	hits       int
}

type fakeRecorder struct {
	searches []recordedSearch
}

func (r *fakeRecorder) RecordSearch(_ context.Context, corpus string, components []string, pattern string, hits int) error {
	r.searches = append(r.searches, recordedSearch{corpus, components, pattern, hits})
	return nil
}
