package sqlitedb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/council-registers/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seed(t *testing.T, s *Store, name, council, ward string) types.Councillor {
	t.Helper()
	ctx := context.Background()
	inserted, err := s.InsertCouncillor(ctx, types.Councillor{Name: name, Council: council, Ward: ward})
	require.NoError(t, err)
	require.True(t, inserted)
	all, err := s.ListCouncillors(ctx)
	require.NoError(t, err)
	return all[len(all)-1]
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestInsertCouncillor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	election := "2027"
	inserted, err := s.InsertCouncillor(ctx, types.Councillor{Name: " Jane Smith ", Council: "Sampleton Council", NextElection: &election})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertCouncillor(ctx, types.Councillor{Name: "Jane Smith", Council: "Sampleton Council"})
	require.NoError(t, err)
	assert.False(t, inserted, "same name, council and empty ward is a duplicate")

	inserted, err = s.InsertCouncillor(ctx, types.Councillor{Name: "Jane Smith", Council: "Sampleton Council", Ward: "East"})
	require.NoError(t, err)
	assert.True(t, inserted)

	all, err := s.ListCouncillors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Jane Smith", all[0].Name)
	assert.Equal(t, "", all[0].Ward)
	require.NotNil(t, all[0].NextElection)
	assert.Equal(t, "2027", *all[0].NextElection)
	assert.Nil(t, all[0].ProfileURL)
	assert.False(t, all[0].CreatedAt.IsZero())
	assert.Less(t, all[0].ID, all[1].ID)
}

func TestSetCouncillorProfileURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seed(t, s, "Jane Smith", "Sampleton Council", "")
	b := seed(t, s, "John Doe", "Sampleton Council", "")

	url := "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101"
	require.NoError(t, s.SetCouncillorProfileURL(ctx, a.ID, url))
	// A URL owned by someone else is not stolen.
	require.NoError(t, s.SetCouncillorProfileURL(ctx, b.ID, url))

	got, err := s.GetCouncillor(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProfileURL)
	assert.Equal(t, url, *got.ProfileURL)

	got, err = s.GetCouncillor(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProfileURL)

	missing, err := s.GetCouncillor(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCouncilHomepageUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h, err := s.GetCouncilHomepage(ctx, "Sampleton Council")
	require.NoError(t, err)
	assert.Nil(t, h)

	require.NoError(t, s.UpsertCouncilHomepage(ctx, "Sampleton Council", "https://old.sampleton.gov.uk"))
	require.NoError(t, s.UpsertCouncilHomepage(ctx, "Sampleton Council", "https://www.sampleton.gov.uk"))

	h, err = s.GetCouncilHomepage(ctx, "Sampleton Council")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "https://www.sampleton.gov.uk", h.HomepageURL)
	assert.WithinDuration(t, time.Now(), h.DiscoveredAt, time.Minute)
}

func TestSaveOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seed(t, s, "Jane Smith", "Sampleton Council", "")
	runID := uuid.New()

	register := &types.CouncillorRegister{
		CouncillorID:  c.ID,
		RegisterURL:   "https://www.sampleton.gov.uk/register.pdf",
		ContentType:   "application/pdf",
		RawBytes:      []byte("%PDF-1.4"),
		ExtractedText: "Register of interests: Jane Smith",
	}
	outcome := &types.Outcome{RunID: runID, Councillor: c, Register: register}
	outcome.AddAudit(types.IssueFetchError, "url=https://www.sampleton.gov.uk/a kind=timeout")
	require.NoError(t, s.SaveOutcome(ctx, outcome))
	require.NoError(t, s.SaveOutcome(ctx, &types.Outcome{RunID: runID, Councillor: c, Register: register}))

	has, err := s.HasRegister(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, has)

	exists, err := s.RegisterExists(ctx, c.ID, register.RegisterURL)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.RegisterExists(ctx, c.ID, "https://www.sampleton.gov.uk/other.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	registers, err := s.ListRegisters(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, registers, 1)
	assert.Equal(t, []byte("%PDF-1.4"), registers[0].RawBytes)
	assert.Equal(t, "application/pdf", registers[0].ContentType)

	audits, err := s.ListAudits(ctx, types.AuditFilter{RunID: runID})
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, types.IssueFetchError, audits[0].IssueType)
	require.NotNil(t, audits[0].CouncillorID)
	assert.Equal(t, c.ID, *audits[0].CouncillorID)
	assert.Equal(t, runID, audits[0].RunID)
}

func TestSaveOutcomeNothingToWrite(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.SaveOutcome(context.Background(), nil))
	assert.NoError(t, s.SaveOutcome(context.Background(), &types.Outcome{}))
}

func TestSaveOutcomeRecordsProfileURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seed(t, s, "Jane Smith", "Sampleton Council", "")
	b := seed(t, s, "John Doe", "Sampleton Council", "")
	profile := "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101"

	require.NoError(t, s.SaveOutcome(ctx, &types.Outcome{RunID: uuid.New(), Councillor: a, ProfileURL: profile}))
	require.NoError(t, s.SaveOutcome(ctx, &types.Outcome{RunID: uuid.New(), Councillor: b, ProfileURL: profile}))

	got, err := s.GetCouncillor(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProfileURL)
	assert.Equal(t, profile, *got.ProfileURL)

	got, err = s.GetCouncillor(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProfileURL, "a profile owned by another councillor is not taken")
}

func TestSaveOutcomeRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seed(t, s, "Jane Smith", "Sampleton Council", "")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	outcome := &types.Outcome{RunID: uuid.New(), Councillor: c, Register: &types.CouncillorRegister{
		CouncillorID: c.ID, RegisterURL: "https://www.sampleton.gov.uk/r.html", ContentType: "text/html",
	}}
	outcome.ProfileURL = "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=7"
	assert.Error(t, s.SaveOutcome(cancelled, outcome))

	has, err := s.HasRegister(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, has)

	got, err := s.GetCouncillor(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProfileURL)
}

func TestSearchRegisters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jane := seed(t, s, "Jane Smith", "Sampleton Council", "North")
	john := seed(t, s, "John Doe", "Otherby Council", "")

	long := ""
	for len(long) < 2000 {
		long += "Shareholding in Acme Widgets Ltd. "
	}
	require.NoError(t, s.SaveOutcome(ctx, &types.Outcome{Councillor: jane, Register: &types.CouncillorRegister{
		CouncillorID: jane.ID, RegisterURL: "https://a.example/r1", ContentType: "text/html", ExtractedText: long,
	}}))
	require.NoError(t, s.SaveOutcome(ctx, &types.Outcome{Councillor: john, Register: &types.CouncillorRegister{
		CouncillorID: john.ID, RegisterURL: "https://b.example/r2", ContentType: "application/pdf", ExtractedText: "Employment: 100% Farming",
	}}))

	matches, err := s.SearchRegisters(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Jane Smith", matches[0].Name)
	assert.Equal(t, "North", matches[0].Ward)
	assert.Len(t, matches[0].Snippet, types.SnippetLength)

	matches, err = s.SearchRegisters(ctx, "council", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, "John Doe", matches[0].Name, "newest first")

	matches, err = s.SearchRegisters(ctx, "100%", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = s.SearchRegisters(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.SearchRegisters(ctx, "council", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestListAuditsFilterAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runA, runB := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		c := seed(t, s, fmt.Sprintf("Councillor %d", i), "Sampleton Council", "")
		o := &types.Outcome{RunID: runA, Councillor: c}
		o.AddAudit(types.IssueNoRegisterFound, "")
		require.NoError(t, s.SaveOutcome(ctx, o))
	}
	c := seed(t, s, "Late Councillor", "Sampleton Council", "")
	o := &types.Outcome{RunID: runB, Councillor: c}
	o.AddAudit(types.IssueNoHomepage, "council=Sampleton Council")
	require.NoError(t, s.SaveOutcome(ctx, o))

	audits, err := s.ListAudits(ctx, types.AuditFilter{IssueType: types.IssueNoRegisterFound})
	require.NoError(t, err)
	assert.Len(t, audits, 3)

	audits, err = s.ListAudits(ctx, types.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, audits, 2)
	assert.Equal(t, types.IssueNoHomepage, audits[0].IssueType, "newest first")

	counts, err := s.CountAuditsByIssue(ctx, runA)
	require.NoError(t, err)
	assert.Equal(t, map[types.IssueType]int{types.IssueNoRegisterFound: 3}, counts)

	counts, err = s.CountAuditsByIssue(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.IssueNoHomepage])
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := uuid.New()

	require.NoError(t, s.StartRun(ctx, runID))
	require.NoError(t, s.StartRun(ctx, runID))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunRunning, runs[0].Status)
	assert.Nil(t, runs[0].CompletedAt)

	require.NoError(t, s.FinishRun(ctx, types.ScrapeRun{ID: runID, Status: types.RunCompleted, Processed: 4, Matched: 3, Failed: 1}))
	runs, err = s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunCompleted, runs[0].Status)
	assert.Equal(t, 4, runs[0].Processed)
	assert.Equal(t, 3, runs[0].Matched)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestTimestampsSortLexically(t *testing.T) {
	a := formatTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	b := formatTime(time.Date(2026, 1, 2, 3, 4, 5, 100, time.UTC))
	assert.Less(t, a, b)
	parsed, err := parseTime(b)
	require.NoError(t, err)
	assert.Equal(t, 100, parsed.Nanosecond())
}

func TestListRegisterTexts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jane := seed(t, s, "Jane Smith", "Sampleton Council", "North")
	john := seed(t, s, "John Doe", "Ashby Council", "")
	seed(t, s, "Nobody Found", "Ashby Council", "")

	save := func(c types.Councillor, url, text string) {
		require.NoError(t, s.SaveOutcome(ctx, &types.Outcome{RunID: uuid.New(), Councillor: c, Register: &types.CouncillorRegister{
			CouncillorID: c.ID, RegisterURL: url, ContentType: "text/html", ExtractedText: text,
		}}))
	}
	save(jane, "https://www.sampleton.gov.uk/b.html", "second")
	save(jane, "https://www.sampleton.gov.uk/a.html", "first")
	save(john, "https://www.ashby.gov.uk/r.html", "")

	texts, err := s.ListRegisterTexts(ctx)
	require.NoError(t, err)
	require.Len(t, texts, 3)
	assert.Equal(t, types.RegisterText{
		Council: "Ashby Council", Councillor: "John Doe", RegisterURL: "https://www.ashby.gov.uk/r.html", ContentType: "text/html",
	}, texts[0])
	assert.Equal(t, "https://www.sampleton.gov.uk/a.html", texts[1].RegisterURL)
	assert.Equal(t, "first", texts[1].ExtractedText)
	assert.Equal(t, "North", texts[1].Ward)
	assert.Equal(t, "https://www.sampleton.gov.uk/b.html", texts[2].RegisterURL)
}
