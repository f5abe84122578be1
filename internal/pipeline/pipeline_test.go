package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/council-registers/internal/crawling"
	"github.com/jonathan/council-registers/internal/democracy"
	"github.com/jonathan/council-registers/internal/fetch"
	"github.com/jonathan/council-registers/internal/homepage"
	"github.com/jonathan/council-registers/internal/observability"
	"github.com/jonathan/council-registers/internal/ratelimit"
	"github.com/jonathan/council-registers/internal/search"
	"github.com/jonathan/council-registers/internal/sqlitedb"
	"github.com/jonathan/council-registers/internal/testutil"
	"github.com/jonathan/council-registers/internal/types"
)

const (
	sampletonHome     = "http://sampleton.gov.uk"
	sampletonRegister = "http://sampleton.gov.uk/council/register-of-interests"
	homepageQuery     = "Sampleton council official website"
)

// harness wires a pipeline to an in-memory store, a fake web and a fake search engine.
type harness struct {
	t      *testing.T
	store  *sqlitedb.Store
	web    *testutil.FakeWeb
	search *testutil.FakeSearch

	useSearch bool
	finder    bool
	rescan    bool
	workers   int
	metrics   *observability.Metrics
	progress  ProgressCallback
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := sqlitedb.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	h := &harness{
		t:       t,
		store:   store,
		web:     testutil.NewFakeWeb(),
		search:  testutil.NewFakeSearch(),
		workers: 2,
	}
	h.search.Add(homepageQuery, sampletonHome)
	return h
}

func (h *harness) seed(name, council, ward string) types.Councillor {
	h.t.Helper()
	ctx := context.Background()
	_, err := h.store.InsertCouncillor(ctx, types.Councillor{Name: name, Council: council, Ward: ward})
	require.NoError(h.t, err)
	all, err := h.store.ListCouncillors(ctx)
	require.NoError(h.t, err)
	return all[len(all)-1]
}

func (h *harness) pipeline() *Pipeline {
	getter := fetch.New(&fetch.Options{
		Timeout:        time.Second,
		MaxRetries:     0,
		RetryBaseDelay: time.Millisecond,
		Transport:      h.web,
		Gate:           ratelimit.NewHostGate(0),
	})
	cache, err := fetch.NewCache(getter, fetch.DefaultCacheSize, fetch.DefaultCacheBytes)
	require.NoError(h.t, err)

	resolver := homepage.NewResolver(h.store, h.search, nil)
	locator := crawling.NewLocator(cache, h.search, &crawling.Options{
		UseCrawl:      true,
		UseSearch:     h.useSearch,
		MaxDepth:      crawling.DefaultMaxDepth,
		MaxPages:      crawling.DefaultMaxPages,
		SearchResults: crawling.DefaultSearchResults,
	})
	opts := &Options{
		Workers:    h.workers,
		Rescan:     h.rescan,
		Metrics:    h.metrics,
		OnProgress: h.progress,
	}
	if h.finder {
		opts.Finder = democracy.NewFinder(cache, nil)
	}
	return New(h.store, cache, resolver, locator, opts)
}

func (h *harness) run() *types.RunSummary {
	h.t.Helper()
	summary, err := h.pipeline().Run(context.Background())
	require.NoError(h.t, err)
	return summary
}

func (h *harness) registers(c types.Councillor) []types.CouncillorRegister {
	h.t.Helper()
	regs, err := h.store.ListRegisters(context.Background(), c.ID)
	require.NoError(h.t, err)
	return regs
}

func (h *harness) audits(filter types.AuditFilter) []types.ScrapingAudit {
	h.t.Helper()
	audits, err := h.store.ListAudits(context.Background(), filter)
	require.NoError(h.t, err)
	return audits
}

func (h *harness) sampletonWithRegister() {
	h.web.HTML(sampletonHome+"/", `<html><body>
		<a href="/council">Your council</a>
		<a href="/council/register-of-interests">Register of interests</a>
	</body></html>`)
	h.web.HTML(sampletonHome+"/council", `<html><body><p>About the council.</p></body></html>`)
	h.web.HTML(sampletonRegister, `<html><body>
		<p>Cllr J. Smith — North ward — declares shares in Acme Widgets Ltd.</p>
	</body></html>`)
}

func TestRun_JaneSmithScenario(t *testing.T) {
	h := newHarness(t)
	h.sampletonWithRegister()
	jane := h.seed("Jane Smith", "Sampleton", "North")

	summary := h.run()

	regs := h.registers(jane)
	require.Len(t, regs, 1)
	assert.Equal(t, sampletonRegister, regs[0].RegisterURL)
	assert.Equal(t, "text/html", regs[0].ContentType)
	assert.Contains(t, regs[0].ExtractedText, "Cllr J. Smith")
	assert.Nil(t, regs[0].RawBytes, "raw bytes are kept for PDFs only")

	assert.Empty(t, h.audits(types.AuditFilter{}))
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, types.RunCompleted, summary.Status)

	hp, err := h.store.GetCouncilHomepage(context.Background(), "Sampleton")
	require.NoError(t, err)
	require.NotNil(t, hp)
	assert.Equal(t, sampletonHome, hp.HomepageURL)
}

func TestRun_NoKeywordLinksWithSearchDisabled(t *testing.T) {
	h := newHarness(t)
	h.web.HTML(sampletonHome+"/", `<html><body><a href="/bins">Bin collections</a></body></html>`)
	h.web.HTML(sampletonHome+"/bins", `<html><body><p>Bins.</p></body></html>`)
	jane := h.seed("Jane Smith", "Sampleton", "North")

	summary := h.run()

	assert.Empty(t, h.registers(jane))
	audits := h.audits(types.AuditFilter{RunID: summary.RunID})
	require.Len(t, audits, 1)
	assert.Equal(t, types.IssueNoRegisterFound, audits[0].IssueType)
	require.NotNil(t, audits[0].CouncillorID)
	assert.Equal(t, jane.ID, *audits[0].CouncillorID)
	assert.Equal(t, []types.Councillor{jane}, summary.Missing)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.sampletonWithRegister()
	jane := h.seed("Jane Smith", "Sampleton", "North")
	h.seed("Bob Brown", "Sampleton", "East")

	first := h.run()
	queriesAfterFirst := len(h.search.Queries())
	second := h.run()

	assert.Len(t, h.registers(jane), 1)
	assert.Equal(t, 1, first.Matched)
	assert.Equal(t, 1, second.Skipped, "matched councillor is not reprocessed")
	assert.Equal(t, 1, second.Processed)
	assert.Equal(t, queriesAfterFirst, len(h.search.Queries()), "cached homepage means no new searches")

	// Bob gets one terminal audit per run.
	bobAudits := h.audits(types.AuditFilter{RunID: second.RunID})
	require.Len(t, bobAudits, 1)
	assert.Equal(t, types.IssueNoNameMatch, bobAudits[0].IssueType)
}

func TestRun_RescanFindsStoredRegisterWithoutDuplicating(t *testing.T) {
	h := newHarness(t)
	h.sampletonWithRegister()
	jane := h.seed("Jane Smith", "Sampleton", "North")

	h.run()
	h.rescan = true
	second := h.run()

	assert.Len(t, h.registers(jane), 1)
	assert.Equal(t, 0, second.Skipped)
	assert.Equal(t, 1, second.Matched)
	assert.Empty(t, h.audits(types.AuditFilter{}))
}

func TestRun_CachedHomepageMakesNoSearch(t *testing.T) {
	h := newHarness(t)
	h.sampletonWithRegister()
	h.seed("Jane Smith", "Sampleton", "North")
	require.NoError(t, h.store.UpsertCouncilHomepage(context.Background(), "Sampleton", sampletonHome))

	summary := h.run()

	assert.Empty(t, h.search.Queries())
	assert.Equal(t, 1, summary.Matched)
}

func TestRun_NoHomepage(t *testing.T) {
	h := newHarness(t)
	h.seed("Jane Smith", "Nowhere", "")

	summary := h.run()

	audits := h.audits(types.AuditFilter{RunID: summary.RunID})
	require.Len(t, audits, 1)
	assert.Equal(t, types.IssueNoHomepage, audits[0].IssueType)
	assert.Contains(t, audits[0].Details, "Nowhere")
}

func TestRun_FetchErrorContinuesToNextCandidate(t *testing.T) {
	h := newHarness(t)
	h.web.HTML(sampletonHome+"/", `<html><body>
		<a href="/broken/register-of-interests">Register of interests (old)</a>
		<a href="/council/register-of-interests">Register of interests</a>
	</body></html>`)
	h.web.Status(sampletonHome+"/broken/register-of-interests", http.StatusNotFound)
	h.web.HTML(sampletonRegister, `<html><body><p>Councillor Jane Smith: no interests.</p></body></html>`)
	jane := h.seed("Jane Smith", "Sampleton", "")

	summary := h.run()

	assert.Len(t, h.registers(jane), 1)
	audits := h.audits(types.AuditFilter{RunID: summary.RunID})
	require.Len(t, audits, 1)
	assert.Equal(t, types.IssueFetchError, audits[0].IssueType)
	assert.Equal(t, "url=http://sampleton.gov.uk/broken/register-of-interests kind=http_error status=404", audits[0].Details)
}

func TestRun_ParseErrorAndNoNameMatch(t *testing.T) {
	h := newHarness(t)
	h.web.HTML(sampletonHome+"/", `<html><body>
		<a href="/registers/register-of-interests.zip">Register of interests archive</a>
		<a href="/council/register-of-interests">Register of interests</a>
	</body></html>`)
	h.web.Serve(sampletonHome+"/registers/register-of-interests.zip", http.StatusOK, "application/zip",
		[]byte("PK\x03\x04\x14\x00\x00\x00\x08\x00some zipped register"))
	h.web.HTML(sampletonRegister, `<html><body><p>Councillor Bob Brown: no interests.</p></body></html>`)
	jane := h.seed("Jane Smith", "Sampleton", "")

	summary := h.run()

	assert.Empty(t, h.registers(jane))
	audits := h.audits(types.AuditFilter{RunID: summary.RunID})
	issues := map[types.IssueType]int{}
	for _, a := range audits {
		issues[a.IssueType]++
	}
	assert.Equal(t, map[types.IssueType]int{types.IssueParseError: 1, types.IssueNoNameMatch: 1}, issues)
	assert.Equal(t, 1, summary.Issues[types.IssueNoNameMatch])
}

func TestRun_FollowsPDFLinksFromRegisterIndex(t *testing.T) {
	h := newHarness(t)
	h.web.HTML(sampletonHome+"/", `<html><body>
		<a href="/council/register-of-interests">Register of interests</a>
	</body></html>`)
	h.web.HTML(sampletonRegister, `<html><body>
		<h1>Register of members' interests</h1>
		<ul>
			<li><a href="/documents/declaration-101.pdf">Declaration 101</a></li>
			<li><a href="/documents/declaration-102.pdf">Declaration 102</a></li>
		</ul>
	</body></html>`)
	h.web.PDF(sampletonHome+"/documents/declaration-101.pdf", testutil.TextPDF("Declaration by Councillor Bob Brown"))
	h.web.PDF(sampletonHome+"/documents/declaration-102.pdf", testutil.TextPDF("Declaration by Councillor Jane Smith"))
	jane := h.seed("Jane Smith", "Sampleton", "")

	h.run()

	regs := h.registers(jane)
	require.Len(t, regs, 1)
	assert.Equal(t, sampletonHome+"/documents/declaration-102.pdf", regs[0].RegisterURL)
	assert.Equal(t, "application/pdf", regs[0].ContentType)
	assert.NotEmpty(t, regs[0].RawBytes)
	assert.Contains(t, regs[0].ExtractedText, "Jane Smith")
}

func TestRun_DemocracyCandidatesSurviveHomepageFailure(t *testing.T) {
	h := newHarness(t)
	h.finder = true
	h.web.HTML("https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1", `<html><body><ul>
		<li><a href="mgUserInfo.aspx?UID=101">Councillor Jane Smith</a><p>North</p></li>
	</ul></body></html>`)
	h.web.HTML("https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101", `<html><body>
		<a href="mgRofI.aspx?UID=101">Register of interests</a>
	</body></html>`)
	h.web.HTML("https://democracy.sampleton.gov.uk/mgRofI.aspx?UID=101", `<html><body>
		<h2>Register of interests: Councillor Jane Smith</h2>
	</body></html>`)
	// No search results at all: the homepage cannot be resolved.
	h.search.Results = map[string][]search.Result{}
	jane := h.seed("Jane Smith", "Sampleton", "North")

	summary := h.run()

	regs := h.registers(jane)
	require.Len(t, regs, 1)
	assert.Equal(t, "https://democracy.sampleton.gov.uk/mgRofI.aspx?UID=101", regs[0].RegisterURL)
	assert.Empty(t, h.audits(types.AuditFilter{RunID: summary.RunID}))

	got, err := h.store.GetCouncillor(context.Background(), jane.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProfileURL)
	assert.Equal(t, "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101", *got.ProfileURL)
}

func TestRun_SharedCouncilResolvedOnce(t *testing.T) {
	h := newHarness(t)
	h.workers = 4
	h.sampletonWithRegister()
	for _, name := range []string{"Jane Smith", "Bob Brown", "Ann Lee", "Raj Patel", "Tom Cole"} {
		h.seed(name, "Sampleton", "")
	}

	summary := h.run()

	assert.Equal(t, []string{homepageQuery}, h.search.Queries())
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 1, h.web.Requests(sampletonHome), "homepage crawled once per run")
}

func TestRun_CancelledRunCommitsNothing(t *testing.T) {
	h := newHarness(t)
	h.sampletonWithRegister()
	jane := h.seed("Jane Smith", "Sampleton", "North")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.progress = func(e ProgressEvent) {
		if e.Step == StepHomepage {
			cancel()
		}
	}

	summary, err := h.pipeline().Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, types.RunCancelled, summary.Status)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, h.registers(jane))
	assert.Empty(t, h.audits(types.AuditFilter{}))

	runs, err := h.store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunCancelled, runs[0].Status)
}

func TestRun_CancelledRunLeavesProfileURLUnset(t *testing.T) {
	h := newHarness(t)
	h.finder = true
	h.web.HTML("https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1", `<html><body><ul>
		<li><a href="mgUserInfo.aspx?UID=101">Councillor Jane Smith</a><p>North</p></li>
	</ul></body></html>`)
	h.web.HTML("https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101", `<html><body><p>Profile</p></body></html>`)
	jane := h.seed("Jane Smith", "Sampleton", "North")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.progress = func(e ProgressEvent) {
		// the member index lookup has finished by the time the homepage step starts
		if e.Step == StepHomepage {
			cancel()
		}
	}

	_, err := h.pipeline().Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.web.Requests("https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101"))

	got, err := h.store.GetCouncillor(context.Background(), jane.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProfileURL, "an interrupted councillor writes nothing")
}

func TestRun_RecordsRunAndMetrics(t *testing.T) {
	h := newHarness(t)
	h.sampletonWithRegister()
	h.metrics = observability.NewMetrics()
	h.seed("Jane Smith", "Sampleton", "North")
	h.seed("Bob Brown", "Sampleton", "East")

	var mu sync.Mutex
	var done []string
	h.progress = func(e ProgressEvent) {
		if e.Step == StepDone {
			mu.Lock()
			done = append(done, e.Councillor)
			mu.Unlock()
		}
	}

	summary := h.run()

	assert.ElementsMatch(t, []string{"Jane Smith", "Bob Brown"}, done)
	runs, err := h.store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, types.RunCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Processed)
	assert.Equal(t, 1, runs[0].Matched)
	assert.Equal(t, 1, runs[0].Failed)
}

type failingStore struct {
	*sqlitedb.Store
}

func (failingStore) SaveOutcome(context.Context, *types.Outcome) error {
	return errors.New("disk full")
}

func TestRun_StoreFailureDoesNotStopRun(t *testing.T) {
	h := newHarness(t)
	h.sampletonWithRegister()
	h.seed("Jane Smith", "Sampleton", "North")
	h.seed("Bob Brown", "Sampleton", "East")

	p := h.pipeline()
	p.store = failingStore{h.store}
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.StoreErrors)
	assert.Equal(t, 0, summary.Processed)
}

type brokenHomepageCache struct {
	*sqlitedb.Store
	reads atomic.Int32
}

func (s *brokenHomepageCache) GetCouncilHomepage(context.Context, string) (*types.CouncilHomepage, error) {
	s.reads.Add(1)
	return nil, errors.New("database is locked")
}

func TestRun_HomepageStoreFailureIsNotNoHomepage(t *testing.T) {
	h := newHarness(t)
	h.workers = 1
	h.sampletonWithRegister()
	h.seed("Jane Smith", "Sampleton", "North")
	h.seed("Bob Brown", "Sampleton", "East")

	cache := &brokenHomepageCache{Store: h.store}
	p := h.pipeline()
	p.resolver = homepage.NewResolver(cache, h.search, nil)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.audits(types.AuditFilter{RunID: summary.RunID, IssueType: types.IssueNoHomepage}))
	audits := h.audits(types.AuditFilter{RunID: summary.RunID, IssueType: types.IssueFetchError})
	require.Len(t, audits, 2)
	assert.Contains(t, audits[0].Details, "database is locked")
	assert.Equal(t, int32(2), cache.reads.Load(), "store failures are retried, not memoised")
	assert.Empty(t, h.search.Queries())
}

func TestRun_ListFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.store.Close()

	_, err := h.pipeline().Run(context.Background())
	assert.Error(t, err)
}

func TestNew_ClampsWorkers(t *testing.T) {
	p := New(nil, nil, nil, nil, &Options{Workers: 100, RunID: uuid.New()})
	assert.Equal(t, MaxWorkers, p.opts.Workers)
	p = New(nil, nil, nil, nil, nil)
	assert.Equal(t, DefaultWorkers, p.opts.Workers)
}
