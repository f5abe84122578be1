package democracy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/council-registers/internal/crawling"
	"github.com/jonathan/council-registers/internal/extract"
	"github.com/jonathan/council-registers/internal/fetch"
	"github.com/jonathan/council-registers/internal/ratelimit"
	"github.com/jonathan/council-registers/internal/testutil"
	"github.com/jonathan/council-registers/internal/types"
)

const memberIndex = `<html><body>
<ul class="mgThumbsList">
	<li><a href="mgUserInfo.aspx?UID=101">Councillor Jane Smith</a><p>Reform UK</p><p>North</p></li>
	<li><a href="mgUserInfo.aspx?UID=102">Councillor Jane Smith</a><p>Independent</p><p>South</p></li>
	<li><a href="mgUserInfo.aspx?UID=103">Cllr Bob Brown</a><p>Labour</p><p>East</p></li>
	<li><a href="mgCalendarMonthView.aspx">Calendar</a></li>
</ul>
</body></html>`

const profilePage = `<html><body>
<h1>Councillor Jane Smith</h1>
<ul>
	<li><a href="mgRofI.aspx?UID=101">Register of interests</a></li>
	<li><a href="documents/s500/Register%20Jane%20Smith.pdf">Declarations of interest 2024</a></li>
	<li><a href="mgAttendance.aspx?UID=101">Attendance</a></li>
</ul>
</body></html>`

func newFinder(web *testutil.FakeWeb) *Finder {
	f := fetch.New(&fetch.Options{
		Timeout:        time.Second,
		RetryBaseDelay: time.Millisecond,
		Transport:      web,
		Gate:           ratelimit.NewHostGate(0),
	})
	return NewFinder(f, nil)
}

func TestFind_FromMemberIndex(t *testing.T) {
	web := testutil.NewFakeWeb()
	web.HTML("https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1", memberIndex)
	web.HTML("https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101", profilePage)

	c := types.Councillor{ID: 1, Name: "Jane Smith", Council: "Sampleton District Council", Ward: "North"}
	result, err := newFinder(web).Find(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1", result.IndexURL)
	assert.Equal(t, "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101", result.ProfileURL)

	var urls []string
	for _, cand := range result.Candidates {
		assert.Equal(t, crawling.SourceDemocracy, cand.Source)
		urls = append(urls, cand.URL)
	}
	assert.Equal(t, []string{
		"https://democracy.sampleton.gov.uk/mgRofI.aspx?UID=101",
		"https://democracy.sampleton.gov.uk/documents/s500/Register%20Jane%20Smith.pdf",
	}, urls)
}

func TestFind_FallsBackToModernGovHost(t *testing.T) {
	web := testutil.NewFakeWeb()
	web.HTML("https://sampleton.moderngov.co.uk/mgMemberIndex.aspx?bcr=1", memberIndex)
	web.HTML("https://sampleton.moderngov.co.uk/mgUserInfo.aspx?UID=103", `<html><body><p>No links</p></body></html>`)

	c := types.Councillor{Name: "Bob Brown", Council: "Sampleton"}
	result, err := newFinder(web).Find(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "https://sampleton.moderngov.co.uk/mgUserInfo.aspx?UID=103", result.ProfileURL)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "https://sampleton.moderngov.co.uk/mgRofI.aspx?UID=103", result.Candidates[0].URL)
}

func TestFind_NoIndex(t *testing.T) {
	_, err := newFinder(testutil.NewFakeWeb()).Find(context.Background(), types.Councillor{Name: "Jane Smith", Council: "Nowhere"})
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestFind_MemberNotListed(t *testing.T) {
	web := testutil.NewFakeWeb()
	web.HTML("https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1", memberIndex)

	_, err := newFinder(web).Find(context.Background(), types.Councillor{Name: "Alice Green", Council: "Sampleton"})
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestFind_UsesKnownProfile(t *testing.T) {
	web := testutil.NewFakeWeb()
	web.HTML("https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101", profilePage)

	profile := "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101"
	result, err := newFinder(web).Find(context.Background(), types.Councillor{Name: "Jane Smith", Council: "Sampleton", ProfileURL: &profile})
	require.NoError(t, err)

	assert.Empty(t, result.IndexURL)
	assert.Len(t, result.Candidates, 2)
	assert.Zero(t, web.Requests("https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1"))
}

func TestSelectMember_PrefersWard(t *testing.T) {
	doc, err := extract.ParseHTML([]byte(memberIndex))
	require.NoError(t, err)
	members := ParseMemberIndex(doc, "https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1")
	require.Len(t, members, 3)
	assert.Equal(t, "Jane Smith", members[0].Name)
	assert.Equal(t, []string{"Reform UK", "North"}, members[0].Details)

	south := SelectMember(members, types.Councillor{Name: "Jane Smith", Ward: "South"})
	require.NotNil(t, south)
	assert.Equal(t, "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=102", south.ProfileURL)

	noWard := SelectMember(members, types.Councillor{Name: "Jane Smith"})
	require.NotNil(t, noWard)
	assert.Equal(t, "https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=101", noWard.ProfileURL)

	assert.Nil(t, SelectMember(members, types.Councillor{Name: "Alice Green"}))
}

func TestSlugAndIndexURLs(t *testing.T) {
	tests := []struct {
		council  string
		expected string
	}{
		{"Sampleton", "sampleton"},
		{"Sampleton District Council", "sampleton"},
		{"North Somerset Council", "northsomerset"},
		{"Stoke-on-Trent City Council", "stokeontrent"},
		{"Council", "council"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Slug(tt.council), tt.council)
	}

	assert.Equal(t, []string{
		"https://democracy.sampleton.gov.uk/mgMemberIndex.aspx?bcr=1",
		"https://sampleton.moderngov.co.uk/mgMemberIndex.aspx?bcr=1",
	}, IndexURLs("Sampleton Borough Council"))
	assert.Nil(t, IndexURLs("  "))
}

func TestDetectPlatform(t *testing.T) {
	assert.Equal(t, PlatformModernGov, DetectPlatform("https://sampleton.moderngov.co.uk/ieListMeetings.aspx"))
	assert.Equal(t, PlatformModernGov, DetectPlatform("https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=1"))
	assert.Equal(t, PlatformCMIS, DetectPlatform("https://cmis.sampleton.gov.uk/cmis5/People.aspx"))
	assert.Equal(t, PlatformUnknown, DetectPlatform("https://www.sampleton.gov.uk/councillors"))
}

func TestRegisterURLFromProfile(t *testing.T) {
	got, ok := RegisterURLFromProfile("https://democracy.sampleton.gov.uk/mgUserInfo.aspx?UID=42&LLL=0")
	require.True(t, ok)
	assert.Equal(t, "https://democracy.sampleton.gov.uk/mgRofI.aspx?UID=42", got)

	_, ok = RegisterURLFromProfile("https://democracy.sampleton.gov.uk/mgUserInfo.aspx")
	assert.False(t, ok)
	_, ok = RegisterURLFromProfile("https://www.sampleton.gov.uk/councillors/jane-smith")
	assert.False(t, ok)
}
